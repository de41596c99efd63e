// Package registry implements the VM-registry external collaborator:
// integer-handle anchoring of arbitrary host values so they stay alive
// across an async boundary (spec.md §6, "VM registry").
//
// Modeled on the uint64-keyed, mutex-guarded table in
// joeycumines-go-utilpkg's eventloop package, but anchors here hold strong
// references on purpose (the whole point of an anchor is to keep a value
// alive until explicitly released) rather than the weak pointers that
// package uses for its GC-friendly promise registry.
package registry

import "sync"

// Ref is an opaque anchor handle. The zero Ref never refers to a live
// anchor; Unanchor on a zero Ref is a no-op.
type Ref uint64

// Registry is a process-wide table of anchored values.
type Registry struct {
	mu     sync.Mutex
	values map[Ref]any
	free   []Ref
	nextID Ref
}

// New returns an empty, ready-to-use Registry.
func New() *Registry {
	return &Registry{
		values: make(map[Ref]any),
		nextID: 1, // 0 is reserved as "no anchor"
	}
}

// Anchor stores value and returns a handle that keeps it alive until
// Unanchor is called with the same handle.
func (r *Registry) Anchor(value any) Ref {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ref Ref
	if n := len(r.free); n > 0 {
		ref = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		ref = r.nextID
		r.nextID++
	}
	r.values[ref] = value
	return ref
}

// Unanchor releases the value held by ref. Safe to call with a zero Ref or
// an already-released Ref (both are no-ops) so every completion path
// described in spec.md invariant 4 can call it unconditionally.
func (r *Registry) Unanchor(ref Ref) {
	if ref == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.values[ref]; !ok {
		return
	}
	delete(r.values, ref)
	r.free = append(r.free, ref)
}

// Value returns the anchored value, if any, without releasing it.
func (r *Registry) Value(ref Ref) (any, bool) {
	if ref == 0 {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[ref]
	return v, ok
}

// Len reports the number of currently held anchors, used by tests to
// assert P4 (anchor balance) holds once a scenario settles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

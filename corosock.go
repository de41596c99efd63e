// Package corosock is the coroutine-oriented TCP socket core described in
// spec.md: the bridge between cooperative caller goroutines ("coroutines")
// and an OS event reactor. A caller drives a Socket with synchronous
// -looking methods (Connect, Read, Write, Shutdown, Close); each one
// submits to the reactor, suspends the calling goroutine on a single-slot
// result channel, and is resumed exactly once when the reactor reports
// completion or a per-operation deadline fires first.
//
// See TEACHER.txt, DESIGN.md and SPEC_FULL.md for how this module was
// grounded on github.com/sagernet/smux and the rest of the retrieved
// example pack.
package corosock

import (
	"sync"
	"time"

	"github.com/coro-io/corosock/internal/pool"
	"github.com/coro-io/corosock/internal/registry"
	"github.com/coro-io/corosock/internal/reqarena"
	"github.com/coro-io/corosock/internal/timerctl"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Role mirrors spec.md §3's Socket.role.
type Role int

const (
	RoleUninit Role = iota
	RoleClient
	RoleServerListening
	RoleServerAccepted
)

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleServerListening:
		return "server-listening"
	case RoleServerAccepted:
		return "server-accepted"
	default:
		return "uninit"
	}
}

// State is spec.md §4.4's state machine:
// Uninit -> (Bound) -> Listening | Connecting -> Established ->
// ShuttingDown -> Closing -> Closed.
type State int

const (
	StateUninit State = iota
	StateBound
	StateListening
	StateConnecting
	StateEstablished
	StateShuttingDown
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateBound:
		return "bound"
	case StateListening:
		return "listening"
	case StateConnecting:
		return "connecting"
	case StateEstablished:
		return "established"
	case StateShuttingDown:
		return "shutting-down"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "uninit"
	}
}

// Config is corosock's plain, programmatic configuration struct, in the
// shape of the teacher's referenced (but not present in the retrieved
// slice) smux Config: a handful of named fields plus a DefaultConfig/Verify
// pair, rather than a file/flag-loading framework — spec.md explicitly
// excludes "module registration, CLI, and build glue", and this is a core
// library an embedding VM configures in code, not from a file.
type Config struct {
	// DefaultBacklog is used by Listen callers that pass backlog<=0.
	DefaultBacklog int
	// ArenaCeiling bounds the Request Arena (0 = unbounded); see
	// internal/reqarena. Tests use a small ceiling to exercise ENOMEM.
	ArenaCeiling int64
	// ReadBufferSizeHint must be positive (Verify checks it); no other
	// code reads it. A read buffer created with a size hint <= 0 is
	// allocated at 4096 bytes by internal/rbuf regardless of this field.
	ReadBufferSizeHint int
	// AcceptRetryBase/AcceptRetryMax bound the exponential backoff applied
	// to transient accept(2) errors in the listen loop (SPEC_FULL.md §2
	// domain-stack note).
	AcceptRetryBase time.Duration
	AcceptRetryMax  time.Duration
	// Metrics, if non-nil, is where the engine registers its Prometheus
	// collectors (SPEC_FULL.md §2). Left nil, no metrics are registered.
	Metrics prometheus.Registerer
	// Logger receives accept-failure and write_async-completion logging
	// (spec.md §7: "never surfaced to the host"). Defaults to
	// logrus.StandardLogger() if nil.
	Logger *logrus.Logger
}

// DefaultConfig returns sane defaults, mirroring the teacher's
// DefaultConfig()-returns-a-working-config convention.
func DefaultConfig() *Config {
	return &Config{
		DefaultBacklog:     128,
		ArenaCeiling:       0,
		ReadBufferSizeHint: 4096,
		AcceptRetryBase:    5 * time.Millisecond,
		AcceptRetryMax:     time.Second,
	}
}

// Verify validates c, matching the teacher's VerifyConfig convention.
func (c *Config) Verify() error {
	if c.DefaultBacklog < 0 {
		return ErrInvalidArgument
	}
	if c.ArenaCeiling < 0 {
		return ErrInvalidArgument
	}
	if c.ReadBufferSizeHint <= 0 {
		return ErrInvalidArgument
	}
	return nil
}

// Engine owns the collaborators spec.md treats as process-wide singletons:
// the request arena, timer controller, VM registry, and memory pool. One
// Engine backs any number of Sockets. A package-level default Engine
// backs the bare New() surface (IsIP needs no Engine), matching spec.md §6's "module
// table is frozen against mutation from user code" — callers that want
// isolated collaborators (e.g. per-test ENOMEM ceilings) construct their
// own Engine explicitly.
type Engine struct {
	cfg      *Config
	arena    *reqarena.Arena
	timers   *timerctl.Controller
	registry *registry.Registry
	pool     *pool.Pool
	metrics  *engineMetrics
	log      *logrus.Logger
}

// NewEngine constructs an Engine from cfg (DefaultConfig() if nil).
func NewEngine(cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	e := &Engine{
		cfg:      cfg,
		arena:    reqarena.New(cfg.ArenaCeiling),
		timers:   timerctl.New(),
		registry: registry.New(),
		pool:     pool.New(),
		log:      logger,
	}
	e.metrics = newEngineMetrics(cfg.Metrics)
	return e, nil
}

// NewSocket constructs a Socket bound to this Engine, the Engine-scoped
// equivalent of the package-level New().
func (e *Engine) NewSocket(anchorCoroutine bool) *Socket {
	s := &Socket{
		eng:   e,
		role:  RoleUninit,
		state: StateUninit,
	}
	if anchorCoroutine {
		// Anchors a placeholder keepalive value; the anchor is held until
		// Close releases it. No method replaces it with a caller-supplied
		// value.
		s.coroAnchor = e.anchor(struct{}{})
	}
	return s
}

var (
	defaultEngineOnce sync.Once
	defaultEngine     *Engine
)

func engine() *Engine {
	defaultEngineOnce.Do(func() {
		e, err := NewEngine(DefaultConfig())
		if err != nil {
			panic("corosock: default engine config invalid: " + err.Error())
		}
		defaultEngine = e
	})
	return defaultEngine
}

// New constructs a Socket on the package-level default Engine (spec.md §6
// module-level "new(anchor_coroutine?) -> socket").
func New(anchorCoroutine bool) *Socket {
	return engine().NewSocket(anchorCoroutine)
}

package timerctl

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArmFiresCallbackAfterDeadline(t *testing.T) {
	c := New()
	timer := c.Acquire()

	done := make(chan struct{})
	c.Arm(timer, 5*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback never fired")
	}
	c.DisarmAndRelease(timer)
}

func TestDisarmAndReleaseStopsPendingTimer(t *testing.T) {
	c := New()
	timer := c.Acquire()

	fired := false
	c.Arm(timer, 50*time.Millisecond, func() { fired = true })
	c.DisarmAndRelease(timer)

	time.Sleep(80 * time.Millisecond)
	assert.False(t, fired, "disarmed timer must not fire")
}

func TestDisarmAndReleaseTwiceOnSameAcquisitionPanics(t *testing.T) {
	c := New()
	timer := c.Acquire()
	c.Arm(timer, time.Minute, func() {})
	c.DisarmAndRelease(timer)

	assert.Panics(t, func() { c.DisarmAndRelease(timer) })
}

func TestClaimTryClaimWinsExactlyOnce(t *testing.T) {
	var claim Claim
	require.True(t, claim.TryClaim())
	assert.False(t, claim.TryClaim())
	assert.False(t, claim.TryClaim())
}

func TestClaimResetAllowsReuse(t *testing.T) {
	var claim Claim
	require.True(t, claim.TryClaim())
	claim.Reset()
	assert.True(t, claim.TryClaim())
}

func TestClaimConcurrentRaceHasExactlyOneWinner(t *testing.T) {
	var claim Claim
	const n = 50
	var wg sync.WaitGroup
	wins := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- claim.TryClaim()
		}()
	}
	wg.Wait()
	close(wins)

	winCount := 0
	for w := range wins {
		if w {
			winCount++
		}
	}
	assert.Equal(t, 1, winCount)
}

package engine

import (
	"context"
	"sync"
	"time"
)

// MicLease serializes access to the single microphone device between the
// wake-word recognizer and a live conversation. Exactly one holder exists
// at a time; handing the device over waits for the previous holder's
// teardown plus a short grace period so the OS releases the device.
type MicLease struct {
	token chan struct{}
	grace time.Duration
}

// NewMicLease returns a free lease. grace is the settle delay applied after
// a holder tears down before the next acquire can proceed.
func NewMicLease(grace time.Duration) *MicLease {
	l := &MicLease{token: make(chan struct{}, 1), grace: grace}
	l.token <- struct{}{}
	return l
}

// Acquire blocks until the lease is free or ctx is done.
func (l *MicLease) Acquire(ctx context.Context) (*Grant, error) {
	select {
	case <-l.token:
		return &Grant{lease: l}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryAcquire grabs the lease without blocking.
func (l *MicLease) TryAcquire() (*Grant, bool) {
	select {
	case <-l.token:
		return &Grant{lease: l}, true
	default:
		return nil, false
	}
}

// Grant is one holder's claim on the microphone.
type Grant struct {
	lease *MicLease
	once  sync.Once
}

// Release runs teardown, waits the grace period and returns the lease.
// Calling Release twice is a no-op; teardown may be nil.
func (g *Grant) Release(teardown func()) {
	g.once.Do(func() {
		if teardown != nil {
			teardown()
		}
		if g.lease.grace > 0 {
			time.Sleep(g.lease.grace)
		}
		g.lease.token <- struct{}{}
	})
}

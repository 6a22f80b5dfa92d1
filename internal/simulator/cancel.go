package simulator

import "sync/atomic"

// CancelToken is a cooperative stop flag polled by the run loop.
type CancelToken struct {
	requested atomic.Bool
}

func (t *CancelToken) Cancel() { t.requested.Store(true) }

func (t *CancelToken) Cancelled() bool { return t.requested.Load() }

func (t *CancelToken) Reset() { t.requested.Store(false) }

package engine

import (
	"context"
	"time"
)

// Ticker is the subset of time.Ticker the countdown needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func newRealTicker(d time.Duration) Ticker { return realTicker{t: time.NewTicker(d)} }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Run drives Tick once per TickInterval until the exam leaves the active
// state, the session is closed, or ctx is cancelled.
func (s *Session) Run(ctx context.Context) {
	t := s.opts.NewTicker(TickInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-t.C():
			if !s.Tick(ctx) {
				return
			}
		}
	}
}

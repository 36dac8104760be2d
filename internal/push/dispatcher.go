package push

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// dispatchTimeout bounds one push delivery. The routing decision never
// waits on this; it only caps the background goroutine.
const dispatchTimeout = 5 * time.Second

// Dispatcher sends notifications as detached fire-and-forget tasks. Each
// dispatch runs in its own goroutine with its own timeout and is joined
// only by logging and auditing, never by the caller's request.
type Dispatcher struct {
	sender  Sender
	audit   AttemptLogger // may be nil
	wg      sync.WaitGroup
	sent    atomic.Uint64
	failed  atomic.Uint64
	timeout time.Duration
}

// NewDispatcher creates a dispatcher delivering through sender. audit may
// be nil when no audit store is configured.
func NewDispatcher(sender Sender, audit AttemptLogger) *Dispatcher {
	return &Dispatcher{
		sender:  sender,
		audit:   audit,
		timeout: dispatchTimeout,
	}
}

// Notify dispatches a wake-up notification for an incoming call and
// returns immediately. The delivery uses a fresh context: the webhook
// request that triggered it finishes long before delivery does.
func (d *Dispatcher) Notify(_ context.Context, token string, payload Payload) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		err := d.sender.Send(ctx, token, payload)
		if err != nil {
			d.failed.Add(1)
			slog.Error("push dispatch failed",
				"call_id", payload.CallID,
				"caller_number", payload.CallerNumber,
				"error", err,
			)
		} else {
			d.sent.Add(1)
			slog.Info("push dispatched", "call_id", payload.CallID)
		}

		if d.audit != nil {
			d.audit.LogPushAttempt(Attempt{CallID: payload.CallID, Token: token, Err: err})
		}
	}()
}

// Stats returns the number of successful and failed dispatches so far.
func (d *Dispatcher) Stats() (sent, failed uint64) {
	return d.sent.Load(), d.failed.Load()
}

// Drain blocks until all in-flight dispatches have finished. Used during
// shutdown and in tests.
func (d *Dispatcher) Drain() {
	d.wg.Wait()
}

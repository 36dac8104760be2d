// Package push wakes a callee's device ahead of an incoming call. Delivery
// is strictly best-effort: a failed or slow push is logged and counted but
// never blocks or alters call routing.
package push

import "context"

// EventIncomingCall is the event type carried in wake-up notifications.
const EventIncomingCall = "incoming-call"

// Payload is the data sent inside a wake-up notification.
type Payload struct {
	CallID       string
	CallerNumber string
	CalleeNumber string
	Type         string
}

// Sender delivers one push notification to a device token.
type Sender interface {
	Send(ctx context.Context, token string, payload Payload) error
}

// Attempt records the outcome of one push dispatch for auditing.
type Attempt struct {
	CallID string
	Token  string
	Err    error
}

// AttemptLogger receives the outcome of every dispatch. Implementations
// must be fast or buffer internally; the dispatcher calls them from its
// delivery goroutine.
type AttemptLogger interface {
	LogPushAttempt(attempt Attempt)
}

// Package telco is the outbound boundary to the telephony provider: it
// forwards validated actions (place call, send message, list logs and
// recordings) and relays provider identifiers verbatim. It holds no state
// and no knowledge of phone-number ownership.
package telco

import (
	"context"
	"fmt"
)

// PlaceCallParams are the provider arguments for an outbound call. From
// must already be a raw phone number; identity-to-number translation is
// the caller's job (via the identity resolver).
type PlaceCallParams struct {
	From           string
	To             string
	CallbackURL    string // call-control document URL executed when answered
	StatusCallback string // lifecycle callback URL; empty disables it
	Record         bool
	Timeout        int // seconds to ring before the callback flow gives up, 0 for provider default
}

// SendMessageParams are the provider arguments for an outbound message.
type SendMessageParams struct {
	From           string
	To             string
	Body           string
	MediaURLs      []string
	StatusCallback string
}

// CallRecord is one entry of the provider's call log.
type CallRecord struct {
	SID       string `json:"sid"`
	From      string `json:"from"`
	To        string `json:"to"`
	Status    string `json:"status"`
	StartTime string `json:"start_time,omitempty"`
	Duration  string `json:"duration,omitempty"`
	Direction string `json:"direction,omitempty"`
}

// MessageRecord is one entry of the provider's message log.
type MessageRecord struct {
	SID      string `json:"sid"`
	From     string `json:"from"`
	To       string `json:"to"`
	Body     string `json:"body"`
	Status   string `json:"status"`
	DateSent string `json:"date_sent,omitempty"`
}

// Recording is one recording held by the provider.
type Recording struct {
	SID         string `json:"sid"`
	CallSID     string `json:"call_sid"`
	Duration    string `json:"duration,omitempty"`
	DateCreated string `json:"date_created,omitempty"`
	Status      string `json:"status,omitempty"`
}

// Gateway forwards actions to the telephony provider. Implementations
// enforce a bounded timeout per call and never retry: retry policy, if
// any, belongs to the caller.
type Gateway interface {
	PlaceCall(ctx context.Context, p PlaceCallParams) (string, error)
	SendMessage(ctx context.Context, p SendMessageParams) (string, error)
	ListCalls(ctx context.Context, limit int) ([]CallRecord, error)
	ListMessages(ctx context.Context, limit int) ([]MessageRecord, error)
	ListRecordings(ctx context.Context, callSID string, limit int) ([]Recording, error)
}

// ProviderError wraps a rejection or failure reported by the provider.
// The message is surfaced to the caller verbatim.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

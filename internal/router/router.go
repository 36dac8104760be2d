// Package router decides what happens to an inbound call: connect it to
// the callee's registered client, optionally waking the device with a push
// notification first, or fall back to voicemail. The decision is computed
// fresh per call event from a point-in-time read of external state; the
// only thing remembered is which calls have already been decided.
package router

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/callbridge/callbridge/internal/identity"
	"github.com/callbridge/callbridge/internal/push"
	"github.com/callbridge/callbridge/internal/registry"
)

// Event is one inbound telephony webhook, reduced to the fields routing
// depends on. It lives for the duration of a single request.
type Event struct {
	CallID       string
	CallerNumber string
	CalleeNumber string
	State        string // provider-defined lifecycle state, treated as opaque
}

// Action is the routing outcome for one event.
type Action int

const (
	// ActionAck acknowledges the webhook without any call-control
	// instruction: non-trigger lifecycle states, unrecognized states, and
	// repeat webhooks for an already-decided call.
	ActionAck Action = iota

	// ActionConnect instructs the provider to dial the callee's client.
	ActionConnect

	// ActionVoicemail sends the caller to the voicemail flow.
	ActionVoicemail
)

// String returns the lower-case name used in logs, metrics and audit rows.
func (a Action) String() string {
	switch a {
	case ActionConnect:
		return "connect"
	case ActionVoicemail:
		return "voicemail"
	default:
		return "ack"
	}
}

// Decision is the routing result handed back to the webhook handler.
type Decision struct {
	Action         Action
	ClientIdentity string // set when Action == ActionConnect
}

// Notifier dispatches a best-effort wake-up notification. Implementations
// must return immediately; delivery happens in the background.
type Notifier interface {
	Notify(ctx context.Context, token string, payload push.Payload)
}

// DecisionRecord is one routing decision for auditing.
type DecisionRecord struct {
	CallID         string
	CallerNumber   string
	CalleeNumber   string
	Outcome        string
	ClientIdentity string
	Reason         string
	DecidedAt      time.Time
}

// DecisionLogger records routing decisions. Implementations handle their
// own failures; an audit problem never changes a decision.
type DecisionLogger interface {
	LogDecision(rec DecisionRecord)
}

// Router holds the decision procedure's dependencies.
type Router struct {
	resolver identity.Resolver
	registry registry.Registry
	notifier Notifier
	audit    DecisionLogger // may be nil
	calls    *callTable

	connects   atomic.Uint64
	voicemails atomic.Uint64
	acks       atomic.Uint64
}

// New creates a Router. audit may be nil when no audit store is configured.
func New(resolver identity.Resolver, reg registry.Registry, notifier Notifier, audit DecisionLogger) *Router {
	return &Router{
		resolver: resolver,
		registry: reg,
		notifier: notifier,
		audit:    audit,
		calls:    newCallTable(defaultCallTTL, defaultCleanupInterval),
	}
}

// Close stops the decision table's background cleanup.
func (r *Router) Close() {
	r.calls.stop()
}

// Route runs the decision procedure for one inbound call event.
//
// Only the first trigger-state webhook for a call produces a routing
// decision; every later webhook for the same call — duplicate ringing,
// status callbacks, states the router does not recognize — is acknowledged
// with a no-op so the provider always gets a prompt answer.
func (r *Router) Route(ctx context.Context, ev Event) Decision {
	if !isTrigger(ev.State) {
		r.acks.Add(1)
		return Decision{Action: ActionAck}
	}

	if !r.calls.claim(ev.CallID) {
		slog.Debug("call already decided, acknowledging",
			"call_id", ev.CallID, "state", ev.State)
		r.acks.Add(1)
		return Decision{Action: ActionAck}
	}

	user, err := r.resolver.ResolveByNumber(ctx, ev.CalleeNumber)
	switch {
	case errors.Is(err, identity.ErrNotFound):
		return r.voicemail(ev, "no identity owns the dialed number")
	case err != nil:
		// An unreachable identity store is indistinguishable from an
		// unknown callee as far as the caller is concerned, and silence
		// is worse than voicemail.
		slog.Error("identity lookup failed, degrading to voicemail",
			"call_id", ev.CallID, "callee_number", ev.CalleeNumber, "error", err)
		return r.voicemail(ev, "identity store unreachable")
	case !user.Reachable():
		return r.voicemail(ev, "identity has no registered client")
	}

	// Best-effort wake-up. A missing token, a registry failure or a push
	// failure all lead to the same place: connect the call anyway.
	token, err := r.registry.Lookup(ctx, user.IdentityID)
	switch {
	case errors.Is(err, registry.ErrAbsent):
		slog.Debug("no push token registered, connecting without wake-up",
			"call_id", ev.CallID, "identity_id", user.IdentityID)
	case err != nil:
		slog.Warn("push token lookup failed, connecting without wake-up",
			"call_id", ev.CallID, "identity_id", user.IdentityID, "error", err)
	default:
		r.notifier.Notify(ctx, token, push.Payload{
			CallID:       ev.CallID,
			CallerNumber: ev.CallerNumber,
			CalleeNumber: ev.CalleeNumber,
			Type:         push.EventIncomingCall,
		})
	}

	return r.connect(ev, user.ClientIdentity)
}

// DecisionCounts returns the number of decisions made per outcome.
func (r *Router) DecisionCounts() map[string]uint64 {
	return map[string]uint64{
		"connect":   r.connects.Load(),
		"voicemail": r.voicemails.Load(),
		"ack":       r.acks.Load(),
	}
}

func (r *Router) connect(ev Event, clientIdentity string) Decision {
	r.connects.Add(1)
	slog.Info("routing call to client",
		"call_id", ev.CallID,
		"caller_number", ev.CallerNumber,
		"client_identity", clientIdentity,
	)
	r.record(ev, ActionConnect, clientIdentity, "")
	return Decision{Action: ActionConnect, ClientIdentity: clientIdentity}
}

func (r *Router) voicemail(ev Event, reason string) Decision {
	r.voicemails.Add(1)
	slog.Info("routing call to voicemail",
		"call_id", ev.CallID,
		"caller_number", ev.CallerNumber,
		"callee_number", ev.CalleeNumber,
		"reason", reason,
	)
	r.record(ev, ActionVoicemail, "", reason)
	return Decision{Action: ActionVoicemail}
}

func (r *Router) record(ev Event, action Action, clientIdentity, reason string) {
	if r.audit == nil {
		return
	}
	r.audit.LogDecision(DecisionRecord{
		CallID:         ev.CallID,
		CallerNumber:   ev.CallerNumber,
		CalleeNumber:   ev.CalleeNumber,
		Outcome:        action.String(),
		ClientIdentity: clientIdentity,
		Reason:         reason,
		DecidedAt:      time.Now().UTC(),
	})
}

// isTrigger reports whether a lifecycle state starts the decision
// procedure. The provider reports a newly ringing inbound call as
// "ringing" or "initiated" depending on direction; everything else is a
// later lifecycle event or a state this router does not know, and both are
// acknowledged without action.
func isTrigger(state string) bool {
	switch strings.ToLower(state) {
	case "ringing", "initiated", "initiating":
		return true
	}
	return false
}

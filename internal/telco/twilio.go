package telco

import (
	"context"
	"log/slog"
	"time"

	"github.com/twilio/twilio-go"
	twilioClient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

const requestTimeout = 10 * time.Second

// lifecycle states the provider reports to the status callback.
var statusCallbackEvents = []string{"initiated", "ringing", "answered", "completed"}

// TwilioGateway implements Gateway against the Twilio REST API.
type TwilioGateway struct {
	client *twilio.RestClient
	log    *slog.Logger
}

func NewTwilioGateway(accountSID, authToken string, log *slog.Logger) *TwilioGateway {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	client.Client.SetTimeout(requestTimeout)
	return &TwilioGateway{client: client, log: log}
}

// Validator returns a webhook signature validator bound to the account's
// auth token.
func Validator(authToken string) *twilioClient.RequestValidator {
	v := twilioClient.NewRequestValidator(authToken)
	return &v
}

func (g *TwilioGateway) PlaceCall(ctx context.Context, p PlaceCallParams) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioApi.CreateCallParams{}
	params.SetTo(p.To)
	params.SetFrom(p.From)
	params.SetUrl(p.CallbackURL)
	if p.StatusCallback != "" {
		params.SetStatusCallback(p.StatusCallback)
		params.SetStatusCallbackEvent(statusCallbackEvents)
	}
	if p.Record {
		params.SetRecord(true)
	}
	if p.Timeout > 0 {
		params.SetTimeout(p.Timeout)
	}

	call, err := g.client.Api.CreateCall(params)
	if err != nil {
		return "", &ProviderError{Op: "create call", Err: err}
	}
	sid := str(call.Sid)
	g.log.Info("placed call", "sid", sid, "from", p.From, "to", p.To)
	return sid, nil
}

func (g *TwilioGateway) SendMessage(ctx context.Context, p SendMessageParams) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(p.To)
	params.SetFrom(p.From)
	params.SetBody(p.Body)
	if len(p.MediaURLs) > 0 {
		params.SetMediaUrl(p.MediaURLs)
	}
	if p.StatusCallback != "" {
		params.SetStatusCallback(p.StatusCallback)
	}

	msg, err := g.client.Api.CreateMessage(params)
	if err != nil {
		return "", &ProviderError{Op: "create message", Err: err}
	}
	sid := str(msg.Sid)
	g.log.Info("sent message", "sid", sid, "from", p.From, "to", p.To)
	return sid, nil
}

func (g *TwilioGateway) ListCalls(ctx context.Context, limit int) ([]CallRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params := &twilioApi.ListCallParams{}
	if limit > 0 {
		params.SetLimit(limit)
	}
	calls, err := g.client.Api.ListCall(params)
	if err != nil {
		return nil, &ProviderError{Op: "list calls", Err: err}
	}

	out := make([]CallRecord, 0, len(calls))
	for _, c := range calls {
		out = append(out, CallRecord{
			SID:       str(c.Sid),
			From:      str(c.From),
			To:        str(c.To),
			Status:    str(c.Status),
			StartTime: str(c.StartTime),
			Duration:  str(c.Duration),
			Direction: str(c.Direction),
		})
	}
	return out, nil
}

func (g *TwilioGateway) ListMessages(ctx context.Context, limit int) ([]MessageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params := &twilioApi.ListMessageParams{}
	if limit > 0 {
		params.SetLimit(limit)
	}
	msgs, err := g.client.Api.ListMessage(params)
	if err != nil {
		return nil, &ProviderError{Op: "list messages", Err: err}
	}

	out := make([]MessageRecord, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageRecord{
			SID:      str(m.Sid),
			From:     str(m.From),
			To:       str(m.To),
			Body:     str(m.Body),
			Status:   str(m.Status),
			DateSent: str(m.DateSent),
		})
	}
	return out, nil
}

func (g *TwilioGateway) ListRecordings(ctx context.Context, callSID string, limit int) ([]Recording, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params := &twilioApi.ListRecordingParams{}
	if callSID != "" {
		params.SetCallSid(callSID)
	}
	if limit > 0 {
		params.SetLimit(limit)
	}
	recs, err := g.client.Api.ListRecording(params)
	if err != nil {
		return nil, &ProviderError{Op: "list recordings", Err: err}
	}

	out := make([]Recording, 0, len(recs))
	for _, r := range recs {
		out = append(out, Recording{
			SID:         str(r.Sid),
			CallSID:     str(r.CallSid),
			Duration:    str(r.Duration),
			DateCreated: str(r.DateCreated),
			Status:      str(r.Status),
		})
	}
	return out, nil
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Package twiml builds the provider's XML call-control documents. Only the
// verbs this relay actually emits are modelled; the documents are plain
// encoding/xml structs, no SDK builder involved.
package twiml

import (
	"bytes"
	"encoding/xml"
	"strings"
)

// Response is the root call-control document.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

// Say speaks a message to the caller.
type Say struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Dial connects the caller to another party.
type Dial struct {
	XMLName xml.Name `xml:"Dial"`
	Client  *Client  `xml:"Client,omitempty"`
}

// Client addresses a registered client instance by its identity.
type Client struct {
	StatusCallbackEvent string `xml:"statusCallbackEvent,attr,omitempty"`
	StatusCallback      string `xml:"statusCallback,attr,omitempty"`
	Identity            string `xml:",chardata"`
}

// Record records the caller's message and posts the result to Action.
type Record struct {
	XMLName   xml.Name `xml:"Record"`
	MaxLength int      `xml:"maxLength,attr,omitempty"`
	Action    string   `xml:"action,attr,omitempty"`
}

// Message replies to an inbound text message.
type Message struct {
	XMLName xml.Name `xml:"Message"`
	Body    string   `xml:",chardata"`
}

// statusCallbackEvents are the call-lifecycle transitions the relay
// subscribes to when connecting a call to a client.
var statusCallbackEvents = []string{"initiated", "ringing", "answered", "completed"}

// voicemailPrompt is spoken before recording when the callee cannot be reached.
const voicemailPrompt = "The person you are trying to reach is unavailable. Please leave a message after the tone."

// voicemailMaxLength caps a voicemail recording, in seconds.
const voicemailMaxLength = 60

// Connect returns the document that dials the given client identity with a
// status-callback subscription for the call's lifecycle transitions.
func Connect(clientIdentity, statusCallbackURL string) Response {
	return Response{Verbs: []any{
		Dial{Client: &Client{
			StatusCallbackEvent: strings.Join(statusCallbackEvents, " "),
			StatusCallback:      statusCallbackURL,
			Identity:            clientIdentity,
		}},
	}}
}

// Voicemail returns the fallback document: a spoken prompt followed by a
// recording that is posted to actionURL when done.
func Voicemail(actionURL string) Response {
	return Response{Verbs: []any{
		Say{Text: voicemailPrompt},
		Record{MaxLength: voicemailMaxLength, Action: actionURL},
	}}
}

// VoicemailDone thanks the caller and hangs up after a recording.
func VoicemailDone() Response {
	return Response{Verbs: []any{
		Say{Text: "Thank you for your message. Goodbye."},
		Hangup{},
	}}
}

// MessageReply acknowledges an inbound text message.
func MessageReply(body string) Response {
	return Response{Verbs: []any{Message{Body: body}}}
}

// Render serialises a document with the XML declaration the provider expects.
func Render(r Response) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

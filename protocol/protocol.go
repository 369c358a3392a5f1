// Package protocol defines the message structures exchanged between linegeist
// and a chat network endpoint. It can be used externally to build relays or
// test servers that speak the same JSON-lines protocol.
package protocol

import "time"

// Request types for Request.Type
const (
	TypeMessageSend = "message.send"
	TypePing        = "system.ping"
)

// Response status values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Message kinds for Message.Kind
const (
	KindText   = "text"   // a single segment
	KindBatch  = "batch"  // several segments sent as one message
	KindAction = "action" // an emote, e.g. "/me waves"
)

// Request represents a message sent from linegeist to a network endpoint.
type Request struct {
	Type string      `json:"type"`           // e.g. "message.send"
	Auth *Auth       `json:"auth,omitempty"` // Optional auth block
	Data interface{} `json:"data,omitempty"` // Optional payload
}

// Response represents an acknowledgement from the endpoint. Command
// executions report their outcome with the same structure.
type Response struct {
	Status string      `json:"status"`          // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`  // Optional result
	Error  string      `json:"error,omitempty"` // Optional error message
}

// Auth holds authentication information for a client.
type Auth struct {
	User  string `json:"user"`
	Token string `json:"token"`
}

// OK reports whether the response carries the ok status.
func (r *Response) OK() bool {
	return r != nil && r.Status == StatusOK
}

// --- Payload Types ---

// Message is a formatted, network-ready chat message.
type Message struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Nick      string    `json:"nick,omitempty"`
	Lines     []string  `json:"lines"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Empty reports whether the message has nothing worth sending.
func (m *Message) Empty() bool {
	if m == nil {
		return true
	}
	for _, r := range m.Text {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

// Receipt describes the outcome of sending a Message.
type Receipt struct {
	MessageID string `json:"message_id"`
	Backend   string `json:"backend"`
	Delivered bool   `json:"delivered"`
	Skipped   bool   `json:"skipped,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// PingResponse is returned by endpoints answering system.ping.
type PingResponse struct {
	Server string `json:"server"`
}

// Package shared defines the JSON messages exchanged between the calculator
// server and its presentation layer.
package shared

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/antibyte/retrocalc/pkg/history"
	"github.com/antibyte/retrocalc/pkg/session"
)

// MessageType names a message on the wire.
type MessageType string

// Client to server.
const (
	MessageTypePress         MessageType = "press"
	MessageTypeClear         MessageType = "clear"
	MessageTypeDelete        MessageType = "delete"
	MessageTypeEquals        MessageType = "equals"
	MessageTypeMode          MessageType = "mode"
	MessageTypeBase          MessageType = "base"
	MessageTypeHistory       MessageType = "history"
	MessageTypeHistoryClear  MessageType = "history_clear"
	MessageTypeHistorySelect MessageType = "history_select"
	MessageTypeKeepalive     MessageType = "keepalive"
)

// Server to client. MessageTypeHistory is used in both directions.
const (
	MessageTypeSession MessageType = "session"
	MessageTypeState   MessageType = "state"
	MessageTypeError   MessageType = "error"
)

// Error kinds that are not evaluation errors.
const (
	ErrorKindBadRequest   = "bad_request"
	ErrorKindInvalidLabel = "invalid_label"
	ErrorKindNotFound     = "not_found"
	ErrorKindRateLimited  = "rate_limited"
	ErrorKindServer       = "server"
)

// MaxValueLength bounds the value of a client message.
const MaxValueLength = 256

var (
	ErrUnknownType   = errors.New("unknown message type")
	ErrValueTooLong  = errors.New("message value too long")
	ErrMissingValue  = errors.New("message value required")
	ErrTrailingInput = errors.New("trailing data after message")
)

// ClientMessage is one event from the presentation layer.
type ClientMessage struct {
	Type  MessageType `json:"type"`
	Value string      `json:"value,omitempty"`
}

var needsValue = map[MessageType]bool{
	MessageTypePress:         true,
	MessageTypeMode:          true,
	MessageTypeBase:          true,
	MessageTypeHistorySelect: true,
}

var knownTypes = map[MessageType]bool{
	MessageTypePress:         true,
	MessageTypeClear:         true,
	MessageTypeDelete:        true,
	MessageTypeEquals:        true,
	MessageTypeMode:          true,
	MessageTypeBase:          true,
	MessageTypeHistory:       true,
	MessageTypeHistoryClear:  true,
	MessageTypeHistorySelect: true,
	MessageTypeKeepalive:     true,
}

// DecodeClientMessage parses and validates one client message. Unknown
// fields, unknown types, oversized values and trailing data are rejected.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var msg ClientMessage
	if err := dec.Decode(&msg); err != nil {
		return ClientMessage{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return ClientMessage{}, ErrTrailingInput
	}
	if !knownTypes[msg.Type] {
		return ClientMessage{}, fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}
	if len(msg.Value) > MaxValueLength {
		return ClientMessage{}, ErrValueTooLong
	}
	if needsValue[msg.Type] && msg.Value == "" {
		return ClientMessage{}, fmt.Errorf("%w for %s", ErrMissingValue, msg.Type)
	}
	return msg, nil
}

// StateView is the session snapshot as sent to the client.
type StateView struct {
	Display string   `json:"display"`
	Raw     string   `json:"raw"`
	Mode    string   `json:"mode"`
	Base    string   `json:"base"`
	Phase   string   `json:"phase"`
	Labels  []string `json:"labels"`
}

// HistoryView is one history entry as sent to the client.
type HistoryView struct {
	ID         string    `json:"id"`
	Expression string    `json:"expression"`
	Result     string    `json:"result"`
	Mode       string    `json:"mode"`
	Timestamp  time.Time `json:"timestamp"`
}

// ErrorView describes a failed request or evaluation.
type ErrorView struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ServerMessage is one message to the presentation layer. Exactly one of the
// payload fields is set, according to Type; an empty history has no entries.
type ServerMessage struct {
	Type      MessageType   `json:"type"`
	SessionID string        `json:"sessionId,omitempty"`
	State     *StateView    `json:"state,omitempty"`
	Entries   []HistoryView `json:"entries,omitempty"`
	Error     *ErrorView    `json:"error,omitempty"`
}

// NewSessionMessage announces the session a connection is bound to.
func NewSessionMessage(sessionID string) ServerMessage {
	return ServerMessage{Type: MessageTypeSession, SessionID: sessionID}
}

// NewStateMessage converts a snapshot. Labels lists the buttons enabled in
// the snapshot's mode and base, sorted.
func NewStateMessage(st session.State) ServerMessage {
	labels := session.Labels(st.Mode, st.Base)
	sort.Strings(labels)
	return ServerMessage{
		Type: MessageTypeState,
		State: &StateView{
			Display: st.Display,
			Raw:     st.Raw,
			Mode:    st.Mode.String(),
			Base:    st.Base.String(),
			Phase:   st.Phase.String(),
			Labels:  labels,
		},
	}
}

// NewHistoryMessage converts a history listing, keeping its order.
func NewHistoryMessage(entries []history.Entry) ServerMessage {
	views := make([]HistoryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, HistoryView{
			ID:         e.ID,
			Expression: e.Expression,
			Result:     e.Result,
			Mode:       e.Mode,
			Timestamp:  e.Timestamp,
		})
	}
	return ServerMessage{Type: MessageTypeHistory, Entries: views}
}

// NewErrorMessage builds an error reply.
func NewErrorMessage(kind, message string) ServerMessage {
	return ServerMessage{Type: MessageTypeError, Error: &ErrorView{Kind: kind, Message: message}}
}

// NewEvaluationErrorMessage reports a failed Equals.
func NewEvaluationErrorMessage(outcome session.Outcome) ServerMessage {
	msg := "evaluation failed"
	if outcome.Err != nil {
		msg = outcome.Err.Error()
	}
	return NewErrorMessage(string(outcome.Kind), msg)
}

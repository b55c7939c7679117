package live

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message types sent to subscribers.
const (
	TypeCard  = "card"
	TypeError = "error"
)

// Envelope wraps every message sent over the socket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// CardPayload carries a freshly rendered card document.
type CardPayload struct {
	Entity     string    `json:"entity"`
	Kind       string    `json:"kind"`
	Document   string    `json:"document"`
	RenderedAt time.Time `json:"renderedAt"`
}

// ErrorPayload is sent when a render for a subscriber fails.
type ErrorPayload struct {
	Entity string `json:"entity"`
	Error  string `json:"error"`
}

// NewEnvelope marshals payload into an envelope of the given type. A nil
// payload is omitted.
func NewEnvelope(msgType string, payload any) ([]byte, error) {
	env := Envelope{Type: msgType}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("error marshaling %s payload: %w", msgType, err)
		}
		env.Payload = b
	}
	return json.Marshal(env)
}

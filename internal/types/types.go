package types

import "encoding/json"

// ClientMessage is the envelope of every inbound frame. Data is decoded
// lazily once Type has been dispatched.
type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type ServerMessage struct {
	Type string `json:"type"` // see pkg/types Event* constants
	Data any    `json:"data,omitempty"`
}

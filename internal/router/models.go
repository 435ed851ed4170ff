package router

import "encoding/json"

// Envelope is the wire shape of every frame in both directions.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

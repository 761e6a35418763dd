// Package proto defines the envelope used on the websocket event stream.
package proto

import "encoding/json"

const (
	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// Outbound is the envelope for messages pushed down the stream.
type Outbound struct {
	Type  string          `json:"type"`
	Event json.RawMessage `json:"event,omitempty"`
	Error *Error          `json:"error,omitempty"`
}

// Error describes a stream-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

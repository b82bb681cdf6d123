package server

import (
	"github.com/zeusync/carview/internal/assets"
	"github.com/zeusync/carview/internal/sim"
)

// Message types written to clients. Every message is a JSON object with a
// "type" field.
const (
	MessageHello = "hello"
	MessageFrame = "frame"
	MessageError = "error"
)

// Hello is the first message of every connection.
type Hello struct {
	Type     string      `json:"type"`
	Session  string      `json:"session"`
	Car      *assets.Car `json:"car,omitempty"`
	TickRate int         `json:"tick_rate"`
}

// FrameMessage carries one simulation frame.
type FrameMessage struct {
	Type string `json:"type"`
	sim.Frame
}

// ErrorMessage reports a rejected input event. The connection stays open.
type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Handshake is the first line a QUIC client sends on its stream.
type Handshake struct {
	Car string `json:"car"`
}

// ABOUTME: Remote monitor message type definitions
// ABOUTME: Defines the JSON envelopes and binary spectrum frames exchanged with studio clients
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the protocol version sent in hellos
const Version = 1

// Message types
const (
	TypeClientHello     = "client/hello"
	TypeServerHello     = "server/hello"
	TypeServerError     = "server/error"
	TypeSessionState    = "session/state"
	TypeMixerState      = "mixer/state"
	TypeMixerSet        = "mixer/set"
	TypeSessionRender   = "session/render"
	TypeSessionStop     = "session/stop"
	TypeVisualizerFrame = "visualizer/frame"
)

// Client roles
const (
	RoleMonitor = "monitor" // receives state and spectrum frames
	RoleControl = "control" // may change levels and start renders
)

// SpectrumFrameType tags binary visualizer frames
const SpectrumFrameType = 2

// ErrShortFrame is returned for a binary frame without a header
var ErrShortFrame = errors.New("spectrum frame too short")

// Message is the top-level wrapper for all protocol messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// DecodePayload re-decodes a generic payload into v
func DecodePayload(payload interface{}, v interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return nil
}

// ClientHello is sent by clients to initiate the handshake
type ClientHello struct {
	ClientID string   `json:"client_id"`
	Name     string   `json:"name"`
	Version  int      `json:"version"`
	Roles    []string `json:"roles"`
}

// ServerHello is the server's response to client/hello
type ServerHello struct {
	ServerID   string `json:"server_id"`
	Name       string `json:"name"`
	Version    int    `json:"version"`
	SampleRate int    `json:"sample_rate"`
	Bins       int    `json:"bins"`
}

// ServerError reports a rejected request
type ServerError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// SessionState reports the playback state of the studio
type SessionState struct {
	Session string `json:"session,omitempty"`
	State   string `json:"state"`
	Error   string `json:"error,omitempty"` // user-facing message of a failed render
}

// ChannelLevel is one fader position
type ChannelLevel struct {
	Channel string  `json:"channel"`
	Volume  float64 `json:"volume"`
	Muted   bool    `json:"muted"`
}

// MixerState lists every fader
type MixerState struct {
	Channels []ChannelLevel `json:"channels"`
}

// MixerSet changes one fader; omitted fields are left as they are
type MixerSet struct {
	Channel string   `json:"channel"`
	Volume  *float64 `json:"volume,omitempty"`
	Muted   *bool    `json:"muted,omitempty"`
}

// SessionRender asks the studio to render and play a script
type SessionRender struct {
	Text              string `json:"text"`
	Voice             string `json:"voice"`
	SystemInstruction string `json:"system_instruction,omitempty"`
	Ambience          string `json:"ambience,omitempty"`
}

// VisualizerFrame describes the waveform clients should draw
type VisualizerFrame struct {
	Playing   bool    `json:"playing"`
	Intensity float64 `json:"intensity"`
	Color     string  `json:"color"`
}

// CreateSpectrumFrame builds a binary spectrum frame
func CreateSpectrumFrame(clockMicros int64, bins []byte) []byte {
	// Binary format: [message_type:1][clock:8][bins:N]
	frame := make([]byte, 1+8+len(bins))
	frame[0] = SpectrumFrameType
	binary.BigEndian.PutUint64(frame[1:9], uint64(clockMicros))
	copy(frame[9:], bins)
	return frame
}

// ParseSpectrumFrame splits a binary spectrum frame
func ParseSpectrumFrame(frame []byte) (int64, []byte, error) {
	if len(frame) < 9 {
		return 0, nil, ErrShortFrame
	}
	if frame[0] != SpectrumFrameType {
		return 0, nil, fmt.Errorf("unexpected frame type %d", frame[0])
	}
	return int64(binary.BigEndian.Uint64(frame[1:9])), frame[9:], nil
}

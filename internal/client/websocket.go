// ABOUTME: WebSocket client for the castvox monitor protocol
// ABOUTME: Handles connection, handshake, message routing and remote control requests
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/castvox/castvox-go/internal/discovery"
	"github.com/castvox/castvox-go/internal/protocol"
)

// ErrNotConnected is returned when sending on a closed client
var ErrNotConnected = errors.New("not connected")

// Config holds client configuration
type Config struct {
	ServerAddr string // host:port
	Path       string // defaults to the advertised endpoint
	ClientID   string
	Name       string
	Roles      []string
}

// Client represents a WebSocket client
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex
	sendMu sync.Mutex // gorilla allows one concurrent writer

	// Message channels
	States  chan protocol.SessionState
	Mixer   chan protocol.MixerState
	Visuals chan protocol.VisualizerFrame
	Spectra chan Spectrum
	Errors  chan protocol.ServerError

	hello     protocol.ServerHello
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// Spectrum is one analyser snapshot
type Spectrum struct {
	ClockMicros int64 // server audio clock
	Bins        []byte
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	if config.Path == "" {
		config.Path = discovery.Path
	}
	if len(config.Roles) == 0 {
		config.Roles = []string{protocol.RoleMonitor}
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:  config,
		States:  make(chan protocol.SessionState, 10),
		Mixer:   make(chan protocol.MixerState, 10),
		Visuals: make(chan protocol.VisualizerFrame, 30),
		Spectra: make(chan Spectrum, 30),
		Errors:  make(chan protocol.ServerError, 10),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Connect establishes the WebSocket connection and performs the handshake
func (c *Client) Connect(ctx context.Context) error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: c.config.Path}
	log.Info("connecting", "url", u.String())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()

	return nil
}

// handshake sends client/hello and waits for server/hello
func (c *Client) handshake() error {
	hello := protocol.ClientHello{
		ClientID: c.config.ClientID,
		Name:     c.config.Name,
		Version:  protocol.Version,
		Roles:    c.config.Roles,
	}
	if err := c.send(protocol.TypeClientHello, hello); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}

	switch msg.Type {
	case protocol.TypeServerHello:
	case protocol.TypeServerError:
		var serr protocol.ServerError
		protocol.DecodePayload(msg.Payload, &serr)
		return fmt.Errorf("server refused: %s", serr.Message)
	default:
		return fmt.Errorf("expected server/hello, got %s", msg.Type)
	}

	var sh protocol.ServerHello
	if err := protocol.DecodePayload(msg.Payload, &sh); err != nil {
		return err
	}
	c.mu.Lock()
	c.hello = sh
	c.mu.Unlock()

	log.Info("handshake complete", "server", sh.Name, "bins", sh.Bins)
	return nil
}

// ServerHello returns what the server announced during the handshake
func (c *Client) ServerHello() protocol.ServerHello {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hello
}

func (c *Client) send(msgType string, payload interface{}) error {
	c.mu.RLock()
	conn, connected := c.conn, c.connected
	c.mu.RUnlock()

	if !connected {
		return ErrNotConnected
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return conn.WriteJSON(protocol.Message{Type: msgType, Payload: payload})
}

// readMessages reads and routes incoming messages
func (c *Client) readMessages() {
	defer c.Close()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				log.Debug("read error", "err", err)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			c.handleBinaryMessage(data)
		case websocket.TextMessage:
			c.handleJSONMessage(data)
		}
	}
}

// handleBinaryMessage handles spectrum frames. Frames are dropped when
// the reader falls behind.
func (c *Client) handleBinaryMessage(data []byte) {
	clock, bins, err := protocol.ParseSpectrumFrame(data)
	if err != nil {
		log.Debug("invalid binary message", "err", err)
		return
	}

	select {
	case c.Spectra <- Spectrum{ClockMicros: clock, Bins: bins}:
	default:
	}
}

// handleJSONMessage routes JSON messages
func (c *Client) handleJSONMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debug("failed to parse JSON message", "err", err)
		return
	}

	switch msg.Type {
	case protocol.TypeSessionState:
		var state protocol.SessionState
		if decode(msg, &state) {
			deliver(c.ctx, c.States, state)
		}

	case protocol.TypeMixerState:
		var mix protocol.MixerState
		if decode(msg, &mix) {
			deliver(c.ctx, c.Mixer, mix)
		}

	case protocol.TypeVisualizerFrame:
		var frame protocol.VisualizerFrame
		if decode(msg, &frame) {
			select {
			case c.Visuals <- frame:
			default:
			}
		}

	case protocol.TypeServerError:
		var serr protocol.ServerError
		if decode(msg, &serr) {
			log.Warn("server error", "code", serr.Error, "message", serr.Message)
			deliver(c.ctx, c.Errors, serr)
		}

	default:
		log.Debug("unknown message type", "type", msg.Type)
	}
}

func decode(msg protocol.Message, v interface{}) bool {
	if err := protocol.DecodePayload(msg.Payload, v); err != nil {
		log.Debug("bad payload", "type", msg.Type, "err", err)
		return false
	}
	return true
}

func deliver[T any](ctx context.Context, ch chan T, v T) {
	select {
	case ch <- v:
	case <-ctx.Done():
	}
}

// SetVolume moves a remote fader
func (c *Client) SetVolume(channel string, volume float64) error {
	return c.send(protocol.TypeMixerSet, protocol.MixerSet{Channel: channel, Volume: &volume})
}

// SetMuted switches a remote mute
func (c *Client) SetMuted(channel string, muted bool) error {
	return c.send(protocol.TypeMixerSet, protocol.MixerSet{Channel: channel, Muted: &muted})
}

// Render asks the server to render and play a script
func (c *Client) Render(req protocol.SessionRender) error {
	return c.send(protocol.TypeSessionRender, req)
}

// Stop asks the server to stop playback
func (c *Client) Stop() error {
	return c.send(protocol.TypeSessionStop, struct{}{})
}

// Done is closed once the connection is gone
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.Close()
		log.Debug("connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

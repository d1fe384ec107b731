// ABOUTME: Remote monitor server for a running studio
// ABOUTME: Manages WebSocket clients, pushes session state and spectrum frames, applies remote control
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/castvox/castvox-go/internal/discovery"
	"github.com/castvox/castvox-go/internal/protocol"
	"github.com/castvox/castvox-go/internal/studio"
	"github.com/castvox/castvox-go/pkg/engine"
	"github.com/castvox/castvox-go/pkg/mixer"
	"github.com/castvox/castvox-go/pkg/visualizer"
)

// Controller is the studio surface the server drives
type Controller interface {
	Render(ctx context.Context, req studio.RenderRequest) (engine.SessionHandle, error)
	Stop()
	Mixer() *mixer.Mixer
	Engine() *engine.Engine
}

// Config holds server configuration
type Config struct {
	Port       int
	Name       string
	Version    string
	EnableMDNS bool
	UseTUI     bool
	FPS        int // spectrum frames per second while playing
	Studio     Controller
}

// Server represents the remote monitor
type Server struct {
	config   Config
	serverID string

	upgrader   websocket.Upgrader
	httpServer *http.Server
	mux        *http.ServeMux

	clients   map[string]*Client
	clientsMu sync.RWMutex

	// Lifetime of renders started by remote clients
	ctx    context.Context
	cancel context.CancelFunc

	tap      *spectrumTap
	renderer *visualizer.Renderer

	stateMu   sync.Mutex
	lastState protocol.SessionState

	mdnsManager *discovery.Manager
	tui         *ServerTUI
	startTime   time.Time

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// Client represents a connected client
type Client struct {
	ID    string
	Name  string
	Conn  *websocket.Conn
	Roles []string

	// Output channel for messages
	sendChan chan interface{}
}

// New creates a new server instance
func New(config Config) *Server {
	if config.FPS <= 0 {
		config.FPS = 30
	}
	if config.Name == "" {
		config.Name = "castvox"
	}

	ctx, cancel := context.WithCancel(context.Background())
	tap := &spectrumTap{src: config.Studio.Engine()}

	s := &Server{
		config:   config,
		serverID: uuid.NewString(),
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// The monitor is meant for trusted local networks
				if origin := r.Header.Get("Origin"); origin != "" {
					log.Debug("accepting websocket origin", "origin", origin)
				}
				return true
			},
		},
		clients:   make(map[string]*Client),
		ctx:       ctx,
		cancel:    cancel,
		tap:       tap,
		renderer:  visualizer.NewRenderer(tap),
		startTime: time.Now(),
		stopChan:  make(chan struct{}),
	}
	s.mux.HandleFunc(discovery.Path, s.handleWebSocket)
	config.Studio.Mixer().OnChange(func(engine.Channel, engine.Level) {
		s.broadcast(protocol.TypeMixerState, s.mixerState(), "")
	})
	return s
}

// Handler returns the HTTP handler serving the WebSocket endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until Stop is called, the TUI quits or the listener fails
func (s *Server) Start() error {
	if s.config.UseTUI {
		s.tui = NewServerTUI()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.tui.Start(s.config.Name, s.config.Port); err != nil {
				log.Error("server TUI failed", "err", err)
			}
		}()
	}

	log.Info("server starting", "name", s.config.Name, "id", s.serverID)

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			Version:     s.config.Version,
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			log.Warn("failed to start mDNS advertisement", "err", err)
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run(s.ctx)
	}()

	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Info("websocket server listening", "addr", addr, "path", discovery.Path)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var serverErr error
	var tuiQuitChan <-chan struct{}
	if s.tui != nil {
		tuiQuitChan = s.tui.QuitChan()
	}

	select {
	case <-s.stopChan:
		log.Info("server shutting down")
	case <-tuiQuitChan:
		log.Info("TUI quit requested, shutting down")
	case err := <-errChan:
		serverErr = err
	}

	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.tui != nil {
		s.tui.Stop()
	}
	s.cancel()
	s.config.Studio.Stop()
	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Debug("http shutdown error", "err", err)
	}

	s.wg.Wait()
	log.Info("server stopped")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Run pushes session state and spectrum frames until ctx is done
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(s.config.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick publishes state changes and, while playing, one visualizer frame
func (s *Server) tick() {
	eng := s.config.Studio.Engine()
	state := protocol.SessionState{State: eng.State().String()}
	if h, ok := eng.Current(); ok {
		state.Session = string(h)
	}

	s.stateMu.Lock()
	changed := state.State != s.lastState.State || state.Session != s.lastState.Session
	if changed {
		s.lastState = state
	}
	s.stateMu.Unlock()

	if changed {
		s.broadcast(protocol.TypeSessionState, state, protocol.RoleMonitor)
		s.updateTUI()
	}

	playing := eng.State() == engine.Playing
	if !playing && !changed {
		return
	}

	frame := s.renderer.Render(1, 1, playing)
	info := protocol.VisualizerFrame{Playing: playing, Intensity: frame.Intensity}
	if len(frame.Strokes) > 0 {
		info.Color = frame.Strokes[0].Color.Hex()
	}
	s.broadcast(protocol.TypeVisualizerFrame, info, protocol.RoleMonitor)
	if playing {
		micros := int64(eng.CurrentTime() * 1e6)
		s.broadcastBinary(protocol.CreateSpectrumFrame(micros, s.tap.last()))
	}
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug("websocket upgrade error", "err", err)
		return
	}

	log.Debug("new websocket connection", "remote", r.RemoteAddr)
	s.handleConnection(conn)
}

// handleConnection manages a client connection
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		log.Debug("rejecting connection during shutdown")
		return
	}
	s.shutdownMu.RUnlock()

	hello, err := readHello(conn)
	if err != nil {
		log.Warn("bad client hello", "err", err)
		return
	}

	log.Info("client hello", "name", hello.Name, "id", hello.ClientID, "roles", hello.Roles)

	client := &Client{
		ID:       hello.ClientID,
		Name:     hello.Name,
		Conn:     conn,
		Roles:    hello.Roles,
		sendChan: make(chan interface{}, 100),
	}

	s.clientsMu.Lock()
	if existing, exists := s.clients[hello.ClientID]; exists {
		s.clientsMu.Unlock()
		log.Warn("rejecting duplicate client id", "id", hello.ClientID, "name", existing.Name)

		data, err := json.Marshal(protocol.Message{
			Type:    protocol.TypeServerError,
			Payload: protocol.ServerError{Error: "duplicate_client_id", Message: "Client ID already connected"},
		})
		if err == nil {
			conn.WriteMessage(websocket.TextMessage, data)
		}
		return
	}
	s.clients[client.ID] = client
	s.clientsMu.Unlock()

	s.updateTUI()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, client.ID)
		s.clientsMu.Unlock()
		close(client.sendChan)
		log.Info("client disconnected", "name", client.Name)
		s.updateTUI()
	}()

	eng := s.config.Studio.Engine()
	s.sendMessage(client, protocol.TypeServerHello, protocol.ServerHello{
		ServerID:   s.serverID,
		Name:       s.config.Name,
		Version:    protocol.Version,
		SampleRate: eng.SampleRate(),
		Bins:       eng.FrequencyBinCount(),
	})
	s.stateMu.Lock()
	state := s.lastState
	s.stateMu.Unlock()
	if state.State == "" {
		state.State = eng.State().String()
	}
	s.sendMessage(client, protocol.TypeSessionState, state)
	s.sendMessage(client, protocol.TypeMixerState, s.mixerState())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.clientWriter(client)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("websocket error", "err", err)
			}
			break
		}
		s.handleClientMessage(client, data)
	}
}

// readHello waits for and validates client/hello
func readHello(conn *websocket.Conn) (protocol.ClientHello, error) {
	var hello protocol.ClientHello

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer conn.SetReadDeadline(time.Time{})

	_, data, err := conn.ReadMessage()
	if err != nil {
		return hello, fmt.Errorf("failed to read hello: %w", err)
	}

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return hello, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	if msg.Type != protocol.TypeClientHello {
		return hello, fmt.Errorf("expected %s, got %s", protocol.TypeClientHello, msg.Type)
	}
	if err := protocol.DecodePayload(msg.Payload, &hello); err != nil {
		return hello, err
	}
	if hello.ClientID == "" {
		return hello, fmt.Errorf("client hello missing client_id")
	}
	if hello.Name == "" {
		return hello, fmt.Errorf("client hello missing name")
	}
	return hello, nil
}

// clientWriter sends messages to the client
func (s *Server) clientWriter(client *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	const writeDeadline = 10 * time.Second

	for {
		select {
		case msg, ok := <-client.sendChan:
			if !ok {
				return
			}

			switch v := msg.(type) {
			case []byte:
				client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
				if err := client.Conn.WriteMessage(websocket.BinaryMessage, v); err != nil {
					log.Debug("error writing binary message", "err", err)
					return
				}
			default:
				data, err := json.Marshal(v)
				if err != nil {
					log.Debug("error marshaling message", "err", err)
					continue
				}
				client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
				if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
					log.Debug("error writing text message", "err", err)
					return
				}
			}

		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}

// handleClientMessage processes messages from clients
func (s *Server) handleClientMessage(client *Client, data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debug("error unmarshaling message", "err", err)
		return
	}

	switch msg.Type {
	case protocol.TypeMixerSet, protocol.TypeSessionRender, protocol.TypeSessionStop:
		if !hasRole(client, protocol.RoleControl) {
			s.sendError(client, "forbidden", msg.Type+" needs the control role")
			return
		}
	default:
		log.Debug("unknown message type", "type", msg.Type)
		return
	}

	switch msg.Type {
	case protocol.TypeMixerSet:
		var set protocol.MixerSet
		if err := protocol.DecodePayload(msg.Payload, &set); err != nil {
			s.sendError(client, "bad_request", err.Error())
			return
		}
		if err := s.applyMixerSet(set); err != nil {
			s.sendError(client, "bad_request", err.Error())
		}

	case protocol.TypeSessionRender:
		var req protocol.SessionRender
		if err := protocol.DecodePayload(msg.Payload, &req); err != nil {
			s.sendError(client, "bad_request", err.Error())
			return
		}
		s.startRender(req)

	case protocol.TypeSessionStop:
		s.config.Studio.Stop()
	}
}

// applyMixerSet updates the faders named by set
func (s *Server) applyMixerSet(set protocol.MixerSet) error {
	ch, err := engine.ParseChannel(set.Channel)
	if err != nil {
		return err
	}
	m := s.config.Studio.Mixer()
	if set.Volume != nil {
		if err := m.SetVolume(ch, *set.Volume); err != nil {
			return err
		}
	}
	if set.Muted != nil {
		if err := m.SetMuted(ch, *set.Muted); err != nil {
			return err
		}
	}
	return nil
}

// startRender runs a render in the background and reports its failure
func (s *Server) startRender(req protocol.SessionRender) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, err := s.config.Studio.Render(s.ctx, studio.RenderRequest{
			Text:              req.Text,
			Voice:             req.Voice,
			SystemInstruction: req.SystemInstruction,
			AmbienceID:        req.Ambience,
		})
		if msg := studio.UserMessage(err); msg != "" {
			log.Warn("remote render failed", "err", err)
			s.broadcast(protocol.TypeSessionState, protocol.SessionState{
				State: s.config.Studio.Engine().State().String(),
				Error: msg,
			}, "")
		}
	}()
}

func (s *Server) mixerState() protocol.MixerState {
	levels := s.config.Studio.Mixer().Levels()
	state := protocol.MixerState{Channels: make([]protocol.ChannelLevel, 0, len(engine.Channels))}
	for _, ch := range engine.Channels {
		l, _ := levels.Get(ch)
		state.Channels = append(state.Channels, protocol.ChannelLevel{Channel: string(ch), Volume: l.Volume, Muted: l.Muted})
	}
	return state
}

// sendMessage queues a JSON message for a client
func (s *Server) sendMessage(client *Client, msgType string, payload interface{}) error {
	select {
	case client.sendChan <- protocol.Message{Type: msgType, Payload: payload}:
		return nil
	default:
		return fmt.Errorf("client send buffer full")
	}
}

func (s *Server) sendError(client *Client, code, message string) {
	if err := s.sendMessage(client, protocol.TypeServerError, protocol.ServerError{Error: code, Message: message}); err != nil {
		log.Debug("dropping error message", "client", client.Name, "err", err)
	}
}

// broadcast queues a JSON message for every client with role, or every
// client when role is empty. Slow clients drop messages.
func (s *Server) broadcast(msgType string, payload interface{}, role string) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, c := range s.clients {
		if role != "" && !hasRole(c, role) {
			continue
		}
		if err := s.sendMessage(c, msgType, payload); err != nil {
			log.Debug("dropping message", "client", c.Name, "type", msgType)
		}
	}
}

func (s *Server) broadcastBinary(frame []byte) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, c := range s.clients {
		if !hasRole(c, protocol.RoleMonitor) {
			continue
		}
		select {
		case c.sendChan <- frame:
		default:
		}
	}
}

// hasRole checks if a client has a specific role
func hasRole(client *Client, role string) bool {
	return slices.Contains(client.Roles, role)
}

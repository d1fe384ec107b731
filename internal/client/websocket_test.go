// ABOUTME: Tests for WebSocket client implementation
// ABOUTME: Tests connection, handshake, and message routing against a scripted server
package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/castvox/castvox-go/internal/protocol"
)

// scriptedServer accepts one connection, answers the hello, then runs script
func scriptedServer(t *testing.T, script func(conn *websocket.Conn, hello protocol.ClientHello)) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/castvox" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var msg protocol.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		var hello protocol.ClientHello
		protocol.DecodePayload(msg.Payload, &hello)
		script(conn, hello)
	}))
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func serverHello(conn *websocket.Conn) {
	conn.WriteJSON(protocol.Message{
		Type:    protocol.TypeServerHello,
		Payload: protocol.ServerHello{ServerID: "s", Name: "studio", Version: protocol.Version, SampleRate: 24000, Bins: 4},
	})
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Config{ServerAddr: "localhost:8928", ClientID: "id", Name: "Monitor"})

	if c.config.Path != "/castvox" {
		t.Errorf("path = %q", c.config.Path)
	}
	if len(c.config.Roles) != 1 || c.config.Roles[0] != protocol.RoleMonitor {
		t.Errorf("roles = %v", c.config.Roles)
	}
	if c.IsConnected() {
		t.Error("new client reports connected")
	}
	if err := c.Stop(); err != ErrNotConnected {
		t.Errorf("Stop before connect = %v", err)
	}
}

func TestConnectHandshake(t *testing.T) {
	got := make(chan protocol.ClientHello, 1)
	addr := scriptedServer(t, func(conn *websocket.Conn, hello protocol.ClientHello) {
		got <- hello
		serverHello(conn)
		conn.ReadMessage()
	})

	c := NewClient(Config{ServerAddr: addr, ClientID: "id", Name: "Monitor", Roles: []string{"monitor", "control"}})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	hello := <-got
	if hello.ClientID != "id" || hello.Version != protocol.Version || len(hello.Roles) != 2 {
		t.Errorf("hello = %+v", hello)
	}
	if sh := c.ServerHello(); sh.Name != "studio" || sh.Bins != 4 {
		t.Errorf("server hello = %+v", sh)
	}
}

func TestConnectRefused(t *testing.T) {
	addr := scriptedServer(t, func(conn *websocket.Conn, _ protocol.ClientHello) {
		conn.WriteJSON(protocol.Message{
			Type:    protocol.TypeServerError,
			Payload: protocol.ServerError{Error: "duplicate_client_id", Message: "Client ID already connected"},
		})
	})

	c := NewClient(Config{ServerAddr: addr, ClientID: "id", Name: "Monitor"})
	err := c.Connect(context.Background())
	if err == nil || !strings.Contains(err.Error(), "already connected") {
		t.Fatalf("err = %v", err)
	}
	if c.IsConnected() {
		t.Error("refused client reports connected")
	}
}

func TestRoutesMessages(t *testing.T) {
	addr := scriptedServer(t, func(conn *websocket.Conn, _ protocol.ClientHello) {
		serverHello(conn)
		conn.WriteJSON(protocol.Message{Type: protocol.TypeSessionState, Payload: protocol.SessionState{Session: "h", State: "playing"}})
		conn.WriteJSON(protocol.Message{Type: protocol.TypeMixerState, Payload: protocol.MixerState{Channels: []protocol.ChannelLevel{{Channel: "voice", Volume: 1}}}})
		conn.WriteJSON(protocol.Message{Type: protocol.TypeVisualizerFrame, Payload: protocol.VisualizerFrame{Playing: true, Intensity: 0.5, Color: "#6366f1"}})
		conn.WriteMessage(websocket.BinaryMessage, protocol.CreateSpectrumFrame(42, []byte{1, 2, 3, 4}))
		conn.WriteMessage(websocket.BinaryMessage, []byte{9})
		conn.WriteJSON(protocol.Message{Type: protocol.TypeServerError, Payload: protocol.ServerError{Error: "forbidden"}})
		conn.ReadMessage()
	})

	c := NewClient(Config{ServerAddr: addr, ClientID: "id", Name: "Monitor"})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	timeout := time.After(5 * time.Second)
	select {
	case s := <-c.States:
		if s.State != "playing" || s.Session != "h" {
			t.Errorf("state = %+v", s)
		}
	case <-timeout:
		t.Fatal("no session state")
	}
	select {
	case m := <-c.Mixer:
		if len(m.Channels) != 1 {
			t.Errorf("mixer = %+v", m)
		}
	case <-timeout:
		t.Fatal("no mixer state")
	}
	select {
	case v := <-c.Visuals:
		if v.Intensity != 0.5 {
			t.Errorf("visual = %+v", v)
		}
	case <-timeout:
		t.Fatal("no visualizer frame")
	}
	select {
	case sp := <-c.Spectra:
		if sp.ClockMicros != 42 || len(sp.Bins) != 4 {
			t.Errorf("spectrum = %+v", sp)
		}
	case <-timeout:
		t.Fatal("no spectrum")
	}
	select {
	case e := <-c.Errors:
		if e.Error != "forbidden" {
			t.Errorf("error = %+v", e)
		}
	case <-timeout:
		t.Fatal("no server error")
	}
}

func TestControlRequests(t *testing.T) {
	got := make(chan protocol.Message, 4)
	addr := scriptedServer(t, func(conn *websocket.Conn, _ protocol.ClientHello) {
		serverHello(conn)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg protocol.Message
			json.Unmarshal(data, &msg)
			got <- msg
		}
	})

	c := NewClient(Config{ServerAddr: addr, ClientID: "id", Name: "Desk", Roles: []string{"control"}})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.SetVolume("ambience", 0.25); err != nil {
		t.Fatal(err)
	}
	if err := c.SetMuted("sfx", true); err != nil {
		t.Fatal(err)
	}
	if err := c.Render(protocol.SessionRender{Text: "halo", Voice: "Kore", Ambience: "cafe"}); err != nil {
		t.Fatal(err)
	}
	if err := c.Stop(); err != nil {
		t.Fatal(err)
	}

	wantTypes := []string{protocol.TypeMixerSet, protocol.TypeMixerSet, protocol.TypeSessionRender, protocol.TypeSessionStop}
	for i, want := range wantTypes {
		select {
		case msg := <-got:
			if msg.Type != want {
				t.Errorf("message %d = %s, want %s", i, msg.Type, want)
			}
			if i == 0 {
				var set protocol.MixerSet
				protocol.DecodePayload(msg.Payload, &set)
				if set.Channel != "ambience" || set.Volume == nil || *set.Volume != 0.25 || set.Muted != nil {
					t.Errorf("mixer/set = %+v", set)
				}
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("missing message %d", i)
		}
	}
}

func TestCloseEndsDone(t *testing.T) {
	addr := scriptedServer(t, func(conn *websocket.Conn, _ protocol.ClientHello) {
		serverHello(conn)
	})

	c := NewClient(Config{ServerAddr: addr, ClientID: "id", Name: "Monitor"})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("client did not notice the server hanging up")
	}
	if c.IsConnected() {
		t.Error("still connected")
	}
}

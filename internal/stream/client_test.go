package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/quietloop/foliox/internal/shared"
)

func staticToken(token string) TokenFunc {
	return func(ctx context.Context) (string, error) { return token, nil }
}

func wsURL(srv *httptest.Server) string {
	return "ws://" + strings.TrimPrefix(srv.URL, "http://")
}

// acceptServer returns a test server that upgrades every request and passes
// the connection to handle. upgrades counts accepted sockets.
func acceptServer(t *testing.T, upgrades *atomic.Int32, handle func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		if upgrades != nil {
			upgrades.Add(1)
		}
		handle(conn)
	}))
}

// holdOpen keeps the server side reading until the client goes away.
func holdOpen(conn *websocket.Conn) {
	ctx := context.Background()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStreamClient(t *testing.T) {
	t.Run("Connect", func(t *testing.T) {
		t.Run("Emits Connected Event", func(t *testing.T) {
			srv := acceptServer(t, nil, holdOpen)
			defer srv.Close()

			client, err := NewClient(Config{URL: wsURL(srv), Token: staticToken("tok")})
			if err != nil {
				t.Fatalf("failed to create client: %v", err)
			}
			defer client.Disconnect()

			var connected atomic.Bool
			client.On(EventConnected, func(Event) { connected.Store(true) })

			if err := client.Connect(context.Background()); err != nil {
				t.Fatalf("expected connect to succeed, got %v", err)
			}
			if !connected.Load() {
				t.Error("expected synthetic connected event")
			}
			if client.State() != StateOpen {
				t.Errorf("expected StateOpen, got %v", client.State())
			}

			// Idempotent while open.
			if err := client.Connect(context.Background()); err != nil {
				t.Errorf("expected no-op connect, got %v", err)
			}
		})

		t.Run("Rejects Concurrent Connect", func(t *testing.T) {
			srv := acceptServer(t, nil, holdOpen)
			defer srv.Close()

			started := make(chan struct{})
			release := make(chan struct{})
			token := func(ctx context.Context) (string, error) {
				close(started)
				<-release
				return "tok", nil
			}

			client, err := NewClient(Config{URL: wsURL(srv), Token: token})
			if err != nil {
				t.Fatalf("failed to create client: %v", err)
			}
			defer client.Disconnect()

			go func() { _ = client.Connect(context.Background()) }()
			<-started

			if err := client.Connect(context.Background()); !errors.Is(err, shared.ErrConnectInProgress) {
				t.Errorf("expected ErrConnectInProgress, got %v", err)
			}
			close(release)
		})

		t.Run("Token Failure Opens No Socket", func(t *testing.T) {
			var upgrades atomic.Int32
			srv := acceptServer(t, &upgrades, holdOpen)
			defer srv.Close()

			token := func(ctx context.Context) (string, error) { return "", errors.New("401") }
			client, err := NewClient(Config{URL: wsURL(srv), Token: token})
			if err != nil {
				t.Fatalf("failed to create client: %v", err)
			}

			if err := client.Connect(context.Background()); !errors.Is(err, shared.ErrAuthFailed) {
				t.Errorf("expected ErrAuthFailed, got %v", err)
			}
			if upgrades.Load() != 0 {
				t.Errorf("expected no socket, got %d upgrades", upgrades.Load())
			}
			if client.State() != StateIdle {
				t.Errorf("expected StateIdle after failure, got %v", client.State())
			}
		})

		t.Run("Token Passed As Query Parameter", func(t *testing.T) {
			var gotToken atomic.Value
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotToken.Store(r.URL.Query().Get("token"))
				conn, err := websocket.Accept(w, r, nil)
				if err != nil {
					return
				}
				holdOpen(conn)
			}))
			defer srv.Close()

			client, _ := NewClient(Config{URL: wsURL(srv), Token: staticToken("short-lived")})
			defer client.Disconnect()

			if err := client.Connect(context.Background()); err != nil {
				t.Fatalf("expected connect to succeed, got %v", err)
			}
			if got, _ := gotToken.Load().(string); got != "short-lived" {
				t.Errorf("expected token query parameter, got %q", got)
			}
		})
	})

	t.Run("Dispatch", func(t *testing.T) {
		t.Run("Specific Before Wildcard", func(t *testing.T) {
			frames := make(chan []byte, 1)
			srv := acceptServer(t, nil, func(conn *websocket.Conn) {
				data := <-frames
				_ = conn.Write(context.Background(), websocket.MessageText, data)
				holdOpen(conn)
			})
			defer srv.Close()

			client, _ := NewClient(Config{URL: wsURL(srv), Token: staticToken("tok")})
			defer client.Disconnect()

			var mu sync.Mutex
			var order []string
			done := make(chan struct{})
			client.On(EventProcessing, func(Event) {
				mu.Lock()
				order = append(order, "specific")
				mu.Unlock()
			})
			client.On(Wildcard, func(e Event) {
				if e.Event != EventProcessing {
					return
				}
				mu.Lock()
				order = append(order, "wildcard")
				mu.Unlock()
				close(done)
			})

			if err := client.Connect(context.Background()); err != nil {
				t.Fatalf("connect failed: %v", err)
			}
			frames <- []byte(`{"event": "processing", "phase": "generating"}`)

			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("timed out waiting for dispatch")
			}

			mu.Lock()
			defer mu.Unlock()
			if len(order) != 2 || order[0] != "specific" || order[1] != "wildcard" {
				t.Errorf("expected specific then wildcard, got %v", order)
			}
		})

		t.Run("Unsubscribe Stops Delivery", func(t *testing.T) {
			client, _ := NewClient(Config{URL: "ws://unused", Token: staticToken("tok")})

			var calls int
			off := client.On(EventError, func(Event) { calls++ })
			client.emit(Event{Event: EventError})
			off()
			client.emit(Event{Event: EventError})

			if calls != 1 {
				t.Errorf("expected 1 call after unsubscribe, got %d", calls)
			}
		})

		t.Run("Malformed Frames Dropped", func(t *testing.T) {
			frames := make(chan []byte, 2)
			srv := acceptServer(t, nil, func(conn *websocket.Conn) {
				for data := range frames {
					_ = conn.Write(context.Background(), websocket.MessageText, data)
				}
				holdOpen(conn)
			})
			defer srv.Close()

			client, _ := NewClient(Config{URL: wsURL(srv), Token: staticToken("tok")})
			defer client.Disconnect()

			got := make(chan Event, 2)
			client.On(EventConversation, func(e Event) { got <- e })

			if err := client.Connect(context.Background()); err != nil {
				t.Fatalf("connect failed: %v", err)
			}
			frames <- []byte(`{not json at all`)
			frames <- []byte(`{"event": "conversation", "phase": "reviewing"}`)
			close(frames)

			select {
			case e := <-got:
				if e.Phase != PhaseReviewing {
					t.Errorf("unexpected event %+v", e)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("expected the well-formed frame to still be delivered")
			}
		})
	})

	t.Run("Conversation Mirror", func(t *testing.T) {
		frames := make(chan []byte, 1)
		srv := acceptServer(t, nil, func(conn *websocket.Conn) {
			data := <-frames
			_ = conn.Write(context.Background(), websocket.MessageText, data)
			holdOpen(conn)
		})
		defer srv.Close()

		client, _ := NewClient(Config{URL: wsURL(srv), Token: staticToken("tok")})
		defer client.Disconnect()

		seen := make(chan struct{})
		client.On(EventConversation, func(Event) { close(seen) })

		if err := client.Connect(context.Background()); err != nil {
			t.Fatalf("connect failed: %v", err)
		}
		frames <- []byte(`{
			"event": "conversation",
			"phase": "reviewing",
			"transcript": [{"role": "assistant", "text": "scene one", "sceneIndex": 0}],
			"preferences": {"tone": "upbeat"}
		}`)
		<-seen

		conv := client.Conversation()
		if conv.Phase != PhaseReviewing {
			t.Errorf("expected mirrored phase, got %v", conv.Phase)
		}
		if len(conv.Transcript) != 1 || conv.Transcript[0].Text != "scene one" {
			t.Errorf("expected mirrored transcript, got %+v", conv.Transcript)
		}
		if conv.Preferences["tone"] != "upbeat" {
			t.Errorf("expected mirrored preferences, got %v", conv.Preferences)
		}
	})

	t.Run("Commands", func(t *testing.T) {
		t.Run("Return False When Disconnected", func(t *testing.T) {
			client, _ := NewClient(Config{URL: "ws://unused", Token: staticToken("tok")})

			var errEvents atomic.Int32
			client.On(EventError, func(Event) { errEvents.Add(1) })

			if client.Generate("a clip about gophers", nil) {
				t.Error("expected Generate to return false while disconnected")
			}
			if client.SendMessage("hello") {
				t.Error("expected SendMessage to return false while disconnected")
			}
			if client.Approve() {
				t.Error("expected Approve to return false while disconnected")
			}
			if client.Ping() {
				t.Error("expected Ping to return false while disconnected")
			}
			if errEvents.Load() != 4 {
				t.Errorf("expected 4 synthetic error events, got %d", errEvents.Load())
			}
		})

		t.Run("Sent Frames Reach The Server", func(t *testing.T) {
			received := make(chan frame, 1)
			srv := acceptServer(t, nil, func(conn *websocket.Conn) {
				_, data, err := conn.Read(context.Background())
				if err != nil {
					return
				}
				var f frame
				_ = json.Unmarshal(data, &f)
				received <- f
				holdOpen(conn)
			})
			defer srv.Close()

			client, _ := NewClient(Config{URL: wsURL(srv), Token: staticToken("tok")})
			defer client.Disconnect()

			if err := client.Connect(context.Background()); err != nil {
				t.Fatalf("connect failed: %v", err)
			}
			if !client.Edit(2, "tighter pacing") {
				t.Fatal("expected Edit to report success")
			}

			select {
			case f := <-received:
				if f.Type != frameEdit || f.SceneIndex != 2 || f.Text != "tighter pacing" {
					t.Errorf("unexpected frame %+v", f)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("timed out waiting for frame")
			}
		})

		t.Run("Ping Sends A Ping Frame", func(t *testing.T) {
			received := make(chan frame, 1)
			srv := acceptServer(t, nil, func(conn *websocket.Conn) {
				_, data, err := conn.Read(context.Background())
				if err != nil {
					return
				}
				var f frame
				_ = json.Unmarshal(data, &f)
				received <- f
				holdOpen(conn)
			})
			defer srv.Close()

			client, _ := NewClient(Config{URL: wsURL(srv), Token: staticToken("tok")})
			defer client.Disconnect()

			if err := client.Connect(context.Background()); err != nil {
				t.Fatalf("connect failed: %v", err)
			}
			if !client.Ping() {
				t.Fatal("expected Ping to report success")
			}

			select {
			case f := <-received:
				if f.Type != framePing {
					t.Errorf("unexpected frame %+v", f)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("timed out waiting for ping frame")
			}
		})
	})

	t.Run("Reconnect", func(t *testing.T) {
		t.Run("Clean Close Suppresses Reconnect", func(t *testing.T) {
			var upgrades atomic.Int32
			srv := acceptServer(t, &upgrades, holdOpen)
			defer srv.Close()

			client, _ := NewClient(Config{
				URL:            wsURL(srv),
				Token:          staticToken("tok"),
				ReconnectDelay: 10 * time.Millisecond,
			})

			if err := client.Connect(context.Background()); err != nil {
				t.Fatalf("connect failed: %v", err)
			}
			if err := client.Disconnect(); err != nil {
				t.Fatalf("disconnect failed: %v", err)
			}

			time.Sleep(100 * time.Millisecond)
			if got := upgrades.Load(); got != 1 {
				t.Errorf("expected no reconnect after clean close, got %d upgrades", got)
			}
			if client.State() != StateIdle {
				t.Errorf("expected StateIdle, got %v", client.State())
			}
		})

		t.Run("Abnormal Close Reconnects", func(t *testing.T) {
			var upgrades atomic.Int32
			srv := acceptServer(t, &upgrades, func(conn *websocket.Conn) {
				if upgrades.Load() == 1 {
					_ = conn.Close(websocket.StatusInternalError, "going away")
					return
				}
				holdOpen(conn)
			})
			defer srv.Close()

			client, _ := NewClient(Config{
				URL:            wsURL(srv),
				Token:          staticToken("tok"),
				ReconnectDelay: 10 * time.Millisecond,
			})
			defer client.Disconnect()

			if err := client.Connect(context.Background()); err != nil {
				t.Fatalf("connect failed: %v", err)
			}

			waitFor(t, "reconnect", func() bool { return upgrades.Load() >= 2 && client.State() == StateOpen })
		})

		t.Run("Budget Exhausted Emits Permanent Disconnect", func(t *testing.T) {
			var upgrades atomic.Int32
			serverConns := make(chan *websocket.Conn, 1)
			srv := acceptServer(t, &upgrades, func(conn *websocket.Conn) {
				serverConns <- conn
				holdOpen(conn)
			})

			client, _ := NewClient(Config{
				URL:            wsURL(srv),
				Token:          staticToken("tok"),
				ReconnectDelay: 10 * time.Millisecond,
				MaxReconnects:  3,
			})

			permanent := make(chan Event, 1)
			client.On(EventDisconnected, func(e Event) {
				if e.Permanent {
					permanent <- e
				}
			})

			if err := client.Connect(context.Background()); err != nil {
				t.Fatalf("connect failed: %v", err)
			}

			// Closing the listener alone never reaches the upgraded socket
			// (it is hijacked from the HTTP server), so sever the accepted
			// connection directly. Every reconnect then dials a dead port.
			conn := <-serverConns
			srv.Close()
			conn.CloseNow()

			select {
			case <-permanent:
			case <-time.After(5 * time.Second):
				t.Fatal("timed out waiting for permanent disconnect event")
			}
			if client.State() != StateClosed {
				t.Errorf("expected StateClosed, got %v", client.State())
			}
			if got := upgrades.Load(); got != 1 {
				t.Errorf("expected no successful reconnects, got %d upgrades", got)
			}
		})
	})

	t.Run("Heartbeat", func(t *testing.T) {
		var pings atomic.Int32
		srv := acceptServer(t, nil, func(conn *websocket.Conn) {
			for {
				_, data, err := conn.Read(context.Background())
				if err != nil {
					return
				}
				var f frame
				if json.Unmarshal(data, &f) == nil && f.Type == framePing {
					pings.Add(1)
				}
			}
		})
		defer srv.Close()

		client, _ := NewClient(Config{
			URL:               wsURL(srv),
			Token:             staticToken("tok"),
			HeartbeatInterval: 20 * time.Millisecond,
		})
		defer client.Disconnect()

		if err := client.Connect(context.Background()); err != nil {
			t.Fatalf("connect failed: %v", err)
		}

		waitFor(t, "heartbeat pings", func() bool { return pings.Load() >= 2 })
	})
}

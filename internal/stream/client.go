package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/websocket"
	"github.com/quietloop/foliox/internal/shared"
)

// State is the connection lifecycle phase.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateReconnecting
	// StateClosed is terminal: the reconnect budget is exhausted and no
	// further automatic attempts will be made.
	StateClosed
)

const (
	defaultHeartbeatInterval = 30 * time.Second
	defaultReconnectDelay    = 2 * time.Second
	defaultMaxReconnects     = 3
)

// TokenFunc fetches a short-lived connection token over the authenticated
// HTTP pipeline.
type TokenFunc func(ctx context.Context) (string, error)

// Handler receives dispatched events.
type Handler func(Event)

// Config configures a stream [Client].
type Config struct {
	// URL is the WebSocket endpoint, e.g. wss://api.folio.gg/ws/clips.
	URL string

	// Token fetches the connection token before each dial.
	Token TokenFunc

	// SessionID identifies the conversation; generated when empty.
	SessionID string

	Logger            *log.Logger
	HeartbeatInterval time.Duration
	ReconnectDelay    time.Duration
	MaxReconnects     int
}

type registration struct {
	id int
	fn Handler
}

// Client is a reconnecting WebSocket client with a typed publish/subscribe
// surface. All methods are safe for concurrent use.
type Client struct {
	cfg    Config
	logger *log.Logger

	mu             sync.Mutex
	state          State
	conn           *websocket.Conn
	attempts       int
	closed         bool // set by Disconnect; suppresses reconnection
	heartbeatStop  chan struct{}
	readCancel     context.CancelFunc
	reconnectTimer *time.Timer
	handlers       map[string][]registration
	nextHandlerID  int
	conv           Conversation
}

// NewClient creates a stream client. Connect must be called before any
// command is sent.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: stream URL is required", shared.ErrInvalidConfig)
	}
	if cfg.Token == nil {
		return nil, fmt.Errorf("%w: token fetcher is required", shared.ErrInvalidConfig)
	}
	if cfg.SessionID == "" {
		cfg.SessionID = shared.GenerateID()
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.MaxReconnects <= 0 {
		cfg.MaxReconnects = defaultMaxReconnects
	}

	logger := cfg.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Client{
		cfg:      cfg,
		logger:   shared.WithLogger(logger, "component", "stream", "sessionId", cfg.SessionID),
		handlers: map[string][]registration{},
	}, nil
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the conversation session identifier.
func (c *Client) SessionID() string { return c.cfg.SessionID }

// Conversation returns a copy of the mirrored conversation state.
func (c *Client) Conversation() Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := Conversation{Phase: c.conv.Phase}
	snapshot.Transcript = append([]SceneEntry(nil), c.conv.Transcript...)
	if c.conv.Preferences != nil {
		snapshot.Preferences = make(map[string]string, len(c.conv.Preferences))
		for k, v := range c.conv.Preferences {
			snapshot.Preferences[k] = v
		}
	}
	return snapshot
}

// On registers a handler for a named event, or for every event when name is
// [Wildcard]. The returned function unsubscribes the handler.
func (c *Client) On(name string, fn Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextHandlerID++
	id := c.nextHandlerID
	c.handlers[name] = append(c.handlers[name], registration{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		regs := c.handlers[name]
		for i, reg := range regs {
			if reg.id == id {
				c.handlers[name] = append(regs[:i:i], regs[i+1:]...)
				return
			}
		}
	}
}

// Connect establishes the connection. It is an idempotent no-op when
// already open, and fails immediately with [shared.ErrConnectInProgress]
// when another connect is underway; duplicate sockets are never opened.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateOpen:
		c.mu.Unlock()
		return nil
	case StateConnecting, StateReconnecting:
		c.mu.Unlock()
		return shared.ErrConnectInProgress
	}
	c.state = StateConnecting
	c.closed = false
	c.mu.Unlock()

	if err := c.establish(ctx); err != nil {
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
		return err
	}
	return nil
}

// establish fetches a token, dials the socket and transitions to Open.
func (c *Client) establish(ctx context.Context) error {
	token, err := c.cfg.Token(ctx)
	if err != nil {
		return fmt.Errorf("%w: could not obtain connection token: %v", shared.ErrAuthFailed, err)
	}

	dialURL := c.cfg.URL
	query := url.Values{"token": {token}, "session_id": {c.cfg.SessionID}}
	dialURL += "?" + query.Encode()

	conn, resp, err := websocket.Dial(ctx, dialURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}

	readCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.closed {
		// Disconnect won the race against the dial.
		c.state = StateIdle
		c.mu.Unlock()
		cancel()
		_ = conn.Close(websocket.StatusNormalClosure, "client disconnect")
		return shared.ErrNotConnected
	}
	c.conn = conn
	c.state = StateOpen
	c.attempts = 0
	c.readCancel = cancel
	c.heartbeatStop = make(chan struct{})
	heartbeatStop := c.heartbeatStop
	c.mu.Unlock()

	go c.heartbeat(conn, heartbeatStop)
	go c.readLoop(readCtx, conn)

	c.logger.Debug("stream connected")
	c.emit(Event{Event: EventConnected})
	return nil
}

// Disconnect performs a clean close. A clean close never triggers the
// reconnect path.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.state = StateIdle
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	cancel := c.readCancel
	c.readCancel = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	err := conn.Close(websocket.StatusNormalClosure, "client disconnect")
	if cancel != nil {
		cancel()
	}
	return err
}

// Generate asks the assistant to start generating a clip. Returns false
// when the socket is not open.
func (c *Client) Generate(prompt string, preferences map[string]string) bool {
	return c.sendFrame(frame{Type: frameGenerate, Prompt: prompt, Preferences: preferences})
}

// SendMessage sends a conversational message to the assistant.
func (c *Client) SendMessage(text string) bool {
	return c.sendFrame(frame{Type: frameMessage, Message: text})
}

// Approve accepts the assistant's current proposal.
func (c *Client) Approve() bool {
	return c.sendFrame(frame{Type: frameApprove})
}

// Edit requests a change to one scene of the current proposal.
func (c *Client) Edit(sceneIndex int, text string) bool {
	return c.sendFrame(frame{Type: frameEdit, SceneIndex: sceneIndex, Text: text})
}

// Ping sends an application-level ping, the same frame the heartbeat
// sends on its interval. Useful as a cheap liveness check.
func (c *Client) Ping() bool {
	return c.sendFrame(frame{Type: framePing})
}

// sendFrame marshals and writes one outbound frame. Failures surface as a
// synthetic error event instead of a synchronous error; commands are
// fire-and-forget over an open socket.
func (c *Client) sendFrame(f frame) bool {
	c.mu.Lock()
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()

	if !open || conn == nil {
		c.emit(Event{Event: EventError, Error: shared.ErrNotConnected.Error()})
		return false
	}

	data, err := json.Marshal(f)
	if err != nil {
		c.emit(Event{Event: EventError, Error: fmt.Sprintf("failed to encode frame: %v", err)})
		return false
	}
	if err := conn.Write(context.Background(), websocket.MessageText, data); err != nil {
		c.emit(Event{Event: EventError, Error: fmt.Sprintf("failed to send frame: %v", err)})
		return false
	}
	return true
}

// heartbeat sends a ping frame on a fixed interval while the socket is
// open, keeping intermediaries from treating the connection as idle.
func (c *Client) heartbeat(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			data, _ := json.Marshal(frame{Type: framePing})
			if err := conn.Write(context.Background(), websocket.MessageText, data); err != nil {
				// The read loop observes the broken connection and owns
				// the reconnect decision.
				c.logger.Debug("heartbeat write failed", "error", err)
				return
			}
		}
	}
}

// readLoop consumes inbound frames until the connection drops, then decides
// whether to reconnect.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			c.handleDrop(conn, err)
			return
		}

		var event Event
		if err := json.Unmarshal(data, &event); err != nil || event.Event == "" {
			c.logger.Warn("dropping malformed frame", "error", err)
			continue
		}

		c.mirror(event)
		c.emit(event)
	}
}

// mirror copies select fields from an inbound event into the local
// conversation state.
func (c *Client) mirror(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if event.Phase != "" {
		c.conv.Phase = event.Phase
	}
	if event.Transcript != nil {
		c.conv.Transcript = append([]SceneEntry(nil), event.Transcript...)
	}
	if event.Preferences != nil {
		prefs := make(map[string]string, len(event.Preferences))
		for k, v := range event.Preferences {
			prefs[k] = v
		}
		c.conv.Preferences = prefs
	}
}

// handleDrop runs when the read loop exits. Clean closes and explicit
// disconnects stop here; anything else goes through the bounded reconnect
// path.
func (c *Client) handleDrop(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
	c.conn = nil
	c.mu.Unlock()

	if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
		c.emit(Event{Event: EventDisconnected})
		return
	}

	c.scheduleReconnect(err)
}

// scheduleReconnect arms the next attempt with linear backoff, or gives up
// permanently once the budget is spent.
func (c *Client) scheduleReconnect(cause error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.attempts >= c.cfg.MaxReconnects {
		c.state = StateClosed
		c.mu.Unlock()
		c.logger.Warn("reconnect budget exhausted, giving up", "cause", cause)
		c.emit(Event{Event: EventDisconnected, Permanent: true})
		return
	}
	c.attempts++
	attempt := c.attempts
	c.state = StateReconnecting
	delay := c.cfg.ReconnectDelay * time.Duration(attempt)
	c.logger.Debug("scheduling reconnect", "attempt", attempt, "delay", delay, "cause", cause)

	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		if c.closed || c.state != StateReconnecting {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := c.establish(ctx); err != nil {
			c.logger.Warn("reconnect attempt failed", "attempt", attempt, "error", err)
			c.scheduleReconnect(err)
		}
	})
	c.mu.Unlock()
}

// emit dispatches an event to its named handlers first, then wildcard
// handlers, each in registration order.
func (c *Client) emit(event Event) {
	c.mu.Lock()
	named := append([]registration(nil), c.handlers[event.Event]...)
	wild := append([]registration(nil), c.handlers[Wildcard]...)
	c.mu.Unlock()

	for _, reg := range named {
		reg.fn(event)
	}
	for _, reg := range wild {
		reg.fn(event)
	}
}

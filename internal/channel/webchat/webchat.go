// Package webchat implements the browser chat channel over WebSocket.
//
// Protocol: the client opens /ws and first sends a hello frame naming
// its user identity. After the hello, inbound frames are start, text or
// select events; outbound frames carry the reply body and an optional
// keyboard.
package webchat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/gostudy/bookbot/internal/domain"
	"github.com/gostudy/bookbot/internal/logging"
)

const helloTimeout = 10 * time.Second

// Frame is the wire format in both directions.
type Frame struct {
	Type    string          `json:"type"` // hello | start | text | select | message | error
	User    string          `json:"user,omitempty"`
	Name    string          `json:"name,omitempty"`
	Body    string          `json:"body,omitempty"`
	Data    string          `json:"data,omitempty"`
	Buttons []domain.Button `json:"buttons,omitempty"`
}

// conn is one connected browser session.
type conn struct {
	socket *websocket.Conn
	mu     sync.Mutex // serializes writes
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.socket.WriteJSON(v)
}

// Channel implements domain.Channel for browser chats. Connections are
// keyed by user identity; a reconnect replaces the previous socket.
type Channel struct {
	upgrader websocket.Upgrader
	log      *logging.Logger

	mu      sync.RWMutex
	conns   map[string]*conn
	handler func(event domain.InboundEvent)
	running bool
}

// New creates the webchat channel. allowedOrigins restricts browser
// origins for the WebSocket upgrade; empty allows same-origin only.
func New(allowedOrigins []string, log *logging.Logger) *Channel {
	return &Channel{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		conns: make(map[string]*conn),
		log:   log.Sub("webchat"),
	}
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // same-origin or non-browser clients
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

func (c *Channel) ID() string { return "webchat" }

func (c *Channel) OnEvent(handler func(event domain.InboundEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Start marks the channel running. The actual connections arrive via
// HandleWS from the gateway's route table.
func (c *Channel) Start(ctx context.Context) error {
	c.mu.Lock()
	c.running = true
	c.mu.Unlock()
	<-ctx.Done()
	return nil
}

// Stop closes all live connections.
func (c *Channel) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for user, cn := range c.conns {
		cn.socket.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		cn.socket.Close()
		delete(c.conns, user)
	}
	c.running = false
	return nil
}

// Status reports the channel state and live connection count.
func (c *Channel) Status() domain.ChannelStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.ChannelStatus{
		ChannelID: "webchat",
		Running:   c.running,
		Connected: len(c.conns) > 0,
	}
}

// Send delivers a message to a connected user.
func (c *Channel) Send(ctx context.Context, msg domain.OutboundMessage) error {
	c.mu.RLock()
	cn, ok := c.conns[msg.To]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("webchat: user %q not connected", msg.To)
	}

	return cn.writeJSON(Frame{
		Type:    "message",
		Body:    msg.Body,
		Buttons: msg.Buttons,
	})
}

// HandleWS upgrades the request and runs the connection until it closes.
func (c *Channel) HandleWS(w http.ResponseWriter, r *http.Request) {
	socket, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	socket.SetReadLimit(64 * 1024)

	user, name, err := c.hello(socket)
	if err != nil {
		c.log.Warn().Err(err).Msg("hello failed")
		socket.Close()
		return
	}

	cn := &conn{socket: socket}
	c.mu.Lock()
	if prev, ok := c.conns[user]; ok {
		prev.socket.Close()
	}
	c.conns[user] = cn
	c.mu.Unlock()

	c.log.Info().Str("user", user).Msg("webchat connected")

	defer func() {
		c.mu.Lock()
		if c.conns[user] == cn {
			delete(c.conns, user)
		}
		c.mu.Unlock()
		socket.Close()
		c.log.Debug().Str("user", user).Msg("webchat disconnected")
	}()

	c.readLoop(cn, user, name)
}

// hello reads the identification frame with a bounded deadline.
func (c *Channel) hello(socket *websocket.Conn) (user, name string, err error) {
	socket.SetReadDeadline(time.Now().Add(helloTimeout))
	defer socket.SetReadDeadline(time.Time{})

	_, raw, err := socket.ReadMessage()
	if err != nil {
		return "", "", fmt.Errorf("reading hello: %w", err)
	}

	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return "", "", fmt.Errorf("parsing hello: %w", err)
	}
	if frame.Type != "hello" || frame.User == "" {
		return "", "", fmt.Errorf("expected hello frame with user, got type=%q", frame.Type)
	}
	return frame.User, frame.Name, nil
}

func (c *Channel) readLoop(cn *conn, user, name string) {
	for {
		_, raw, err := cn.socket.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug().Err(err).Str("user", user).Msg("read error")
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			cn.writeJSON(Frame{Type: "error", Body: "invalid frame"})
			continue
		}

		event := domain.InboundEvent{
			ID:        uuid.New().String(),
			ChannelID: "webchat",
			From:      user,
			FromName:  name,
			ChatID:    user,
			Timestamp: time.Now(),
		}

		switch frame.Type {
		case "start":
			event.Kind = domain.EventStart
		case "text":
			event.Kind = domain.EventText
			event.Body = frame.Body
		case "select":
			event.Kind = domain.EventSelect
			event.Data = frame.Data
		default:
			cn.writeJSON(Frame{Type: "error", Body: "unknown frame type: " + frame.Type})
			continue
		}

		c.deliver(event)
	}
}

func (c *Channel) deliver(event domain.InboundEvent) {
	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()

	if handler != nil {
		handler(event)
	}
}

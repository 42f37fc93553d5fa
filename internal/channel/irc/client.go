// Package irc implements the IRC chat channel using the girc library.
package irc

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lrstanley/girc"

	"github.com/gostudy/bookbot/internal/config"
	"github.com/gostudy/bookbot/internal/domain"
	"github.com/gostudy/bookbot/internal/logging"
)

// startCommand restarts the booking conversation from a private message.
const startCommand = "!start"

// Channel implements domain.Channel for IRC. The booking conversation
// is personal, so the channel talks to users over private messages;
// configured channels are joined only so users can discover the bot.
type Channel struct {
	cfg    config.IRCConfig
	client *girc.Client
	log    *logging.Logger

	mu      sync.RWMutex
	handler func(event domain.InboundEvent)
	running bool
	lastErr string

	keyboards *keyboardTracker
}

// New creates an IRC channel from configuration.
func New(cfg config.IRCConfig, log *logging.Logger) *Channel {
	return &Channel{
		cfg:       cfg,
		log:       log.Sub("irc"),
		keyboards: newKeyboardTracker(),
	}
}

func (c *Channel) ID() string { return "irc" }

func (c *Channel) OnEvent(handler func(event domain.InboundEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Status returns the current runtime status.
func (c *Channel) Status() domain.ChannelStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.ChannelStatus{
		ChannelID: "irc",
		Connected: c.client != nil && c.client.IsConnected(),
		Running:   c.running,
		LastError: c.lastErr,
	}
}

// Start connects to the IRC server and blocks until the connection
// ends or the context is cancelled.
func (c *Channel) Start(ctx context.Context) error {
	port := c.cfg.Port
	if port == 0 {
		if c.cfg.UseTLS {
			port = 6697
		} else {
			port = 6667
		}
	}

	gircCfg := girc.Config{
		Server:  c.cfg.Server,
		Port:    port,
		Nick:    c.cfg.Nick,
		User:    c.cfg.Nick,
		Name:    "Bookbot IRC",
		SSL:     c.cfg.UseTLS,
		Version: "Bookbot/1.0",
	}

	if c.cfg.UseTLS {
		gircCfg.TLSConfig = &tls.Config{
			ServerName: c.cfg.Server,
		}
	}

	if c.cfg.SASL && c.cfg.Password != "" {
		gircCfg.SASL = &girc.SASLPlain{
			User: c.cfg.Nick,
			Pass: c.cfg.Password,
		}
	} else if c.cfg.Password != "" {
		gircCfg.ServerPass = c.cfg.Password
	}

	c.client = girc.New(gircCfg)
	c.client.Handlers.Add(girc.CONNECTED, c.onConnected)
	c.client.Handlers.Add(girc.PRIVMSG, c.onPrivmsg)
	c.client.Handlers.Add(girc.DISCONNECTED, c.onDisconnected)

	c.mu.Lock()
	c.running = true
	c.lastErr = ""
	c.mu.Unlock()

	c.log.Info().
		Str("server", c.cfg.Server).
		Int("port", port).
		Str("nick", c.cfg.Nick).
		Bool("tls", c.cfg.UseTLS).
		Msg("connecting to IRC")

	// Connect() blocks; run it aside so cancellation can interrupt
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.client.Connect()
	}()

	select {
	case err := <-errCh:
		c.mu.Lock()
		c.running = false
		if err != nil {
			c.lastErr = err.Error()
		}
		c.mu.Unlock()
		if err != nil {
			return fmt.Errorf("irc connect: %w", err)
		}
		return nil
	case <-ctx.Done():
		c.client.Close()
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		return ctx.Err()
	}
}

// Stop gracefully disconnects from the IRC server.
func (c *Channel) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil && c.client.IsConnected() {
		c.log.Info().Msg("disconnecting from IRC")
		c.client.Quit("bookbot shutting down")
	}
	c.running = false
	return nil
}

// Send delivers a message to a user. Keyboards become numbered lines
// and the mapping is remembered so a numeric reply selects the entry.
func (c *Channel) Send(ctx context.Context, msg domain.OutboundMessage) error {
	if c.client == nil || !c.client.IsConnected() {
		return fmt.Errorf("irc: not connected")
	}
	if msg.To == "" {
		return fmt.Errorf("irc: no target specified")
	}

	body := msg.Body
	if len(msg.Buttons) > 0 {
		body += "\n" + renderKeyboard(msg.Buttons)
		c.keyboards.set(msg.To, msg.Buttons)
	} else {
		c.keyboards.clear(msg.To)
	}

	// IRC has a ~512 byte line limit; split on newlines and chunk the rest
	lines := splitMessage(body, 400)
	for _, line := range lines {
		c.client.Cmd.Message(msg.To, line)
	}

	c.log.Debug().
		Str("to", msg.To).
		Int("lines", len(lines)).
		Msg("sent IRC message")

	return nil
}

func (c *Channel) onConnected(_ *girc.Client, e girc.Event) {
	c.log.Info().Str("nick", c.client.GetNick()).Msg("connected to IRC")

	for _, ch := range c.cfg.Channels {
		c.log.Info().Str("channel", ch).Msg("joining channel")
		c.client.Cmd.Join(ch)
	}
}

func (c *Channel) onPrivmsg(_ *girc.Client, e girc.Event) {
	if e.Source == nil {
		return
	}
	if e.Source.Name == c.client.GetNick() {
		return
	}

	// booking runs over private messages only
	if e.IsFromChannel() {
		body := strings.ToLower(e.Last())
		if strings.Contains(body, strings.ToLower(c.client.GetNick())) {
			c.client.Cmd.Message(e.Params[0], fmt.Sprintf("%s: message me %q to book a session", e.Source.Name, startCommand))
		}
		return
	}

	nick := e.Source.Name
	body := strings.TrimSpace(e.Last())

	event := domain.InboundEvent{
		ID:        uuid.New().String(),
		ChannelID: "irc",
		From:      "irc:" + nick,
		FromName:  nick,
		ChatID:    nick,
		Timestamp: time.Now(),
	}

	switch {
	case strings.EqualFold(body, startCommand) || strings.EqualFold(body, "start"):
		event.Kind = domain.EventStart
	default:
		if data, ok := c.keyboards.resolve(nick, body); ok {
			event.Kind = domain.EventSelect
			event.Data = data
		} else {
			event.Kind = domain.EventText
			event.Body = body
		}
	}

	c.deliver(event)
}

func (c *Channel) deliver(event domain.InboundEvent) {
	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()

	if handler != nil {
		handler(event)
	}
}

func (c *Channel) onDisconnected(_ *girc.Client, e girc.Event) {
	c.log.Warn().Msg("disconnected from IRC")
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

// splitMessage breaks a message into IRC-sized chunks. Each newline
// produces a separate chunk because PRIVMSG cannot carry newlines;
// lines longer than maxLen are split at the byte boundary.
func splitMessage(text string, maxLen int) []string {
	var chunks []string
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			continue
		}
		for len(line) > maxLen {
			chunks = append(chunks, line[:maxLen])
			line = line[maxLen:]
		}
		chunks = append(chunks, line)
	}
	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}

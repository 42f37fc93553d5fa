package channel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gostudy/bookbot/internal/domain"
	"github.com/gostudy/bookbot/internal/logging"
)

type stubChannel struct {
	id   string
	sent []domain.OutboundMessage
}

func (s *stubChannel) ID() string                                    { return s.id }
func (s *stubChannel) Start(ctx context.Context) error               { <-ctx.Done(); return nil }
func (s *stubChannel) Stop(ctx context.Context) error                { return nil }
func (s *stubChannel) OnEvent(handler func(domain.InboundEvent))     {}
func (s *stubChannel) Send(_ context.Context, m domain.OutboundMessage) error {
	s.sent = append(s.sent, m)
	return nil
}

func TestRegisterAndGet(t *testing.T) {
	registry := NewRegistry(logging.Nop())

	require.NoError(t, registry.Register(&stubChannel{id: "irc"}))
	require.NoError(t, registry.Register(&stubChannel{id: "webchat"}))
	assert.Equal(t, 2, registry.Count())

	_, ok := registry.Get("irc")
	assert.True(t, ok)
	_, ok = registry.Get("telegram")
	assert.False(t, ok)

	assert.ElementsMatch(t, []string{"irc", "webchat"}, registry.List())
}

func TestRegisterDuplicate(t *testing.T) {
	registry := NewRegistry(logging.Nop())

	require.NoError(t, registry.Register(&stubChannel{id: "irc"}))
	assert.Error(t, registry.Register(&stubChannel{id: "irc"}))
}

func TestDeliver(t *testing.T) {
	registry := NewRegistry(logging.Nop())
	ch := &stubChannel{id: "webchat"}
	require.NoError(t, registry.Register(ch))

	msg := domain.OutboundMessage{ChannelID: "webchat", To: "user-1", Body: "hi"}
	require.NoError(t, registry.Deliver(context.Background(), msg))
	require.Len(t, ch.sent, 1)
	assert.Equal(t, "user-1", ch.sent[0].To)

	err := registry.Deliver(context.Background(), domain.OutboundMessage{ChannelID: "telegram"})
	assert.Error(t, err)
}

func TestStatusFallback(t *testing.T) {
	registry := NewRegistry(logging.Nop())
	require.NoError(t, registry.Register(&stubChannel{id: "webchat"}))

	statuses := registry.Status()
	require.Len(t, statuses, 1)
	assert.Equal(t, "webchat", statuses[0].ChannelID)
	assert.True(t, statuses[0].Running)
}

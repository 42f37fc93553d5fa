// Package routing connects chat channels to the booking flow.
package routing

import (
	"context"
	"sync"

	"github.com/gostudy/bookbot/internal/channel"
	"github.com/gostudy/bookbot/internal/domain"
	"github.com/gostudy/bookbot/internal/flow"
	"github.com/gostudy/bookbot/internal/logging"
)

// EventRecorder counts handled inbound events. Implemented by the
// metrics collector.
type EventRecorder interface {
	RecordEvent(channel, kind string)
}

// Router dispatches inbound events to the flow and sends the replies
// back through the originating channel. Events from the same identity
// are processed strictly in order; different identities run in parallel.
type Router struct {
	channels *channel.Registry
	flow     *flow.Flow
	locks    *identityLocks
	metrics  EventRecorder
	log      *logging.Logger
}

// RouterOption configures optional router behavior.
type RouterOption func(*Router)

// WithEventRecorder attaches an event metrics recorder.
func WithEventRecorder(rec EventRecorder) RouterOption {
	return func(r *Router) { r.metrics = rec }
}

// NewRouter creates an event router.
func NewRouter(channels *channel.Registry, f *flow.Flow, log *logging.Logger, opts ...RouterOption) *Router {
	r := &Router{
		channels: channels,
		flow:     f,
		locks:    newIdentityLocks(),
		log:      log.Sub("routing"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Bind subscribes the router to every channel currently registered.
func (r *Router) Bind() {
	for _, id := range r.channels.List() {
		ch, ok := r.channels.Get(id)
		if !ok {
			continue
		}
		ch.OnEvent(func(event domain.InboundEvent) {
			go r.HandleInbound(context.Background(), event)
		})
	}
}

// HandleInbound processes one inbound event to completion.
func (r *Router) HandleInbound(ctx context.Context, event domain.InboundEvent) {
	unlock := r.locks.lock(event.From)
	defer unlock()

	r.log.Info().
		Str("channel", event.ChannelID).
		Str("from", event.From).
		Str("kind", string(event.Kind)).
		Msg("routing inbound event")

	if r.metrics != nil {
		r.metrics.RecordEvent(event.ChannelID, string(event.Kind))
	}

	replies := r.flow.Handle(ctx, event)
	for _, reply := range replies {
		if err := r.channels.Deliver(ctx, reply); err != nil {
			r.log.Error().Err(err).
				Str("channel", reply.ChannelID).
				Str("to", reply.To).
				Msg("failed to send reply")
			return
		}
	}

	if len(replies) > 0 {
		r.log.Debug().
			Str("from", event.From).
			Int("replies", len(replies)).
			Msg("replies sent")
	}
}

// identityLocks hands out one mutex per identity. Entries stay small (a
// mutex and a counter) and are removed once no event holds or waits on
// them.
type identityLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newIdentityLocks() *identityLocks {
	return &identityLocks{entries: make(map[string]*lockEntry)}
}

func (l *identityLocks) lock(identity string) (unlock func()) {
	l.mu.Lock()
	entry, ok := l.entries[identity]
	if !ok {
		entry = &lockEntry{}
		l.entries[identity] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, identity)
		}
		l.mu.Unlock()
	}
}

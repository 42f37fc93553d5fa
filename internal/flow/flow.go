// Package flow implements the booking conversation: language selection,
// Calendly connect prompts, slot listing and slot selection.
package flow

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gostudy/bookbot/internal/domain"
	"github.com/gostudy/bookbot/internal/logging"
	"github.com/gostudy/bookbot/internal/scheduling"
)

// selectPrefix marks slot selections in button callback data; the rest
// of the payload is the slot's ISO start time.
const selectPrefix = "book:"

// CredentialSource looks up a stored Calendly token for an identity.
// A nil credential with nil error means the user has not connected yet.
type CredentialSource interface {
	Load(ctx context.Context, identity string) (*domain.Credential, error)
}

// SlotSource fetches open slots for an access token.
type SlotSource interface {
	Slots(ctx context.Context, token string) ([]scheduling.Slot, error)
}

// Flow drives the booking conversation for all identities.
type Flow struct {
	sessions    *SessionStore
	credentials CredentialSource
	slots       SlotSource
	publicURL   string
	log         *logging.Logger
}

// New creates the conversation flow. publicURL is the externally
// reachable gateway base used to build Calendly connect links.
func New(credentials CredentialSource, slots SlotSource, publicURL string, log *logging.Logger) *Flow {
	return &Flow{
		sessions:    NewSessionStore(),
		credentials: credentials,
		slots:       slots,
		publicURL:   strings.TrimRight(publicURL, "/"),
		log:         log.Sub("flow"),
	}
}

// Sessions exposes the underlying session store.
func (f *Flow) Sessions() *SessionStore { return f.sessions }

// Handle processes one inbound event and returns the replies to send.
func (f *Flow) Handle(ctx context.Context, event domain.InboundEvent) []domain.OutboundMessage {
	switch event.Kind {
	case domain.EventStart:
		return f.handleStart(event)
	case domain.EventSelect:
		if strings.HasPrefix(event.Data, selectPrefix) {
			return f.handleSelection(event)
		}
		return f.handleText(ctx, event)
	case domain.EventText:
		return f.handleText(ctx, event)
	default:
		f.log.Warn().Str("kind", string(event.Kind)).Msg("unknown event kind")
		return nil
	}
}

// handleStart resets the conversation and shows the language keyboard.
func (f *Flow) handleStart(event domain.InboundEvent) []domain.OutboundMessage {
	f.sessions.Reset(event.From, event.ChannelID, event.ChatID)
	return []domain.OutboundMessage{reply(event,
		"Please select your language / Пожалуйста, выберите язык / Iltimos, tilni tanlang:",
		languageKeyboard()...,
	)}
}

// handleText routes free text by session state. Text before /start is
// ignored so channel noise never triggers the bot.
func (f *Flow) handleText(ctx context.Context, event domain.InboundEvent) []domain.OutboundMessage {
	session := f.sessions.Get(event.From)
	if session == nil {
		return nil
	}

	switch session.State {
	case domain.StateAwaitingLanguage:
		return f.handleLanguage(ctx, event)
	case domain.StateAwaitingSlot:
		// slot choices arrive as selections; free text here is ignored
		return nil
	default:
		return nil
	}
}

// handleLanguage records the chosen language, then either prompts for
// the Calendly connect link or lists open slots.
func (f *Flow) handleLanguage(ctx context.Context, event domain.InboundEvent) []domain.OutboundMessage {
	choice := event.Body
	if event.Kind == domain.EventSelect {
		choice = event.Data
	}
	lang, ok := Languages[choice]
	if !ok {
		return []domain.OutboundMessage{reply(event, "❗ Please select from the buttons below.")}
	}

	f.sessions.Update(event.From, func(s *domain.Session) {
		s.Language = lang
	})

	credential, err := f.credentials.Load(ctx, event.From)
	if err != nil {
		f.log.Error().Err(err).Str("identity", event.From).Msg("credential lookup failed")
		return []domain.OutboundMessage{reply(event, "❗ Something went wrong. Please try again later.")}
	}
	if credential == nil {
		return []domain.OutboundMessage{reply(event,
			"🔐 Please connect your Calendly account first:\n\n"+f.connectURL(event.From),
		)}
	}

	fetching := reply(event, "🔍 Fetching your available time slots...")

	slots, err := f.slots.Slots(ctx, credential.AccessToken)
	if err != nil {
		f.log.Warn().Err(err).Str("identity", event.From).Msg("slot fetch failed")
		return []domain.OutboundMessage{fetching,
			reply(event, "❗ Failed to fetch slots: "+err.Error()),
		}
	}
	if len(slots) == 0 {
		return []domain.OutboundMessage{fetching,
			reply(event, "😔 No available slots at the moment. Please try again later."),
		}
	}

	buttons := make([]domain.Button, 0, len(slots))
	for _, slot := range slots {
		buttons = append(buttons, domain.Button{
			Label: slot.Display,
			Data:  selectPrefix + slot.ISO,
		})
	}

	f.sessions.Update(event.From, func(s *domain.Session) {
		s.State = domain.StateAwaitingSlot
	})

	return []domain.OutboundMessage{fetching,
		reply(event, "✅ Available time slots:", buttons...),
	}
}

// handleSelection records the picked slot and hands off to the payment
// placeholder.
func (f *Flow) handleSelection(event domain.InboundEvent) []domain.OutboundMessage {
	iso := strings.TrimPrefix(event.Data, selectPrefix)
	if iso == "" {
		return nil
	}

	session := f.sessions.Get(event.From)
	if session == nil || session.State != domain.StateAwaitingSlot {
		return nil
	}

	f.sessions.Update(event.From, func(s *domain.Session) {
		s.SelectedSlot = iso
	})

	display := scheduling.FormatStartTime(iso)
	return []domain.OutboundMessage{
		reply(event, fmt.Sprintf("🧾 You selected: %s\n\n💳 Please select a payment method:", display)),
		reply(event, "💳 Payment flow will begin here in the next step."),
	}
}

func (f *Flow) connectURL(identity string) string {
	return f.publicURL + "/auth/connect?telegram_id=" + url.QueryEscape(identity)
}

func reply(event domain.InboundEvent, body string, buttons ...domain.Button) domain.OutboundMessage {
	return domain.OutboundMessage{
		ChannelID: event.ChannelID,
		To:        event.ChatID,
		Body:      body,
		Buttons:   buttons,
	}
}

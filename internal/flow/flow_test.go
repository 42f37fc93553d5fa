package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gostudy/bookbot/internal/domain"
	"github.com/gostudy/bookbot/internal/logging"
	"github.com/gostudy/bookbot/internal/scheduling"
)

type fakeCredentials struct {
	tokens map[string]string
	err    error
}

func (f *fakeCredentials) Load(_ context.Context, identity string) (*domain.Credential, error) {
	if f.err != nil {
		return nil, f.err
	}
	token, ok := f.tokens[identity]
	if !ok {
		return nil, nil
	}
	return &domain.Credential{Identity: identity, AccessToken: token}, nil
}

type fakeSlots struct {
	slots     []scheduling.Slot
	err       error
	lastToken string
}

func (f *fakeSlots) Slots(_ context.Context, token string) ([]scheduling.Slot, error) {
	f.lastToken = token
	return f.slots, f.err
}

func event(kind domain.EventKind, body, data string) domain.InboundEvent {
	return domain.InboundEvent{
		ID:        "evt-1",
		ChannelID: "webchat",
		From:      "42",
		ChatID:    "chat-42",
		Kind:      kind,
		Body:      body,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func testFlow(credentials *fakeCredentials, slots *fakeSlots) *Flow {
	return New(credentials, slots, "https://bot.example.com/", logging.Nop())
}

func TestStartShowsLanguageKeyboard(t *testing.T) {
	f := testFlow(&fakeCredentials{}, &fakeSlots{})

	replies := f.Handle(context.Background(), event(domain.EventStart, "", ""))
	require.Len(t, replies, 1)

	assert.Equal(t, "webchat", replies[0].ChannelID)
	assert.Equal(t, "chat-42", replies[0].To)
	assert.Contains(t, replies[0].Body, "select your language")
	require.Len(t, replies[0].Buttons, 3)
	assert.Equal(t, "🇺🇿 Uzbek", replies[0].Buttons[0].Label)
	assert.Equal(t, "🇷🇺 Русский", replies[0].Buttons[1].Label)
	assert.Equal(t, "🇬🇧 English", replies[0].Buttons[2].Label)

	session := f.Sessions().Get("42")
	require.NotNil(t, session)
	assert.Equal(t, domain.StateAwaitingLanguage, session.State)
}

func TestStartResetsExistingSession(t *testing.T) {
	f := testFlow(&fakeCredentials{tokens: map[string]string{"42": "tok"}}, &fakeSlots{
		slots: []scheduling.Slot{{ISO: "2026-09-01T10:00:00Z", Display: "2026-09-01 10:00:00"}},
	})
	ctx := context.Background()

	f.Handle(ctx, event(domain.EventStart, "", ""))
	f.Handle(ctx, event(domain.EventText, "🇬🇧 English", ""))
	require.Equal(t, domain.StateAwaitingSlot, f.Sessions().Get("42").State)

	f.Handle(ctx, event(domain.EventStart, "", ""))
	session := f.Sessions().Get("42")
	assert.Equal(t, domain.StateAwaitingLanguage, session.State)
	assert.Empty(t, session.Language)
	assert.Empty(t, session.SelectedSlot)
}

func TestTextBeforeStartIgnored(t *testing.T) {
	f := testFlow(&fakeCredentials{}, &fakeSlots{})

	replies := f.Handle(context.Background(), event(domain.EventText, "hello", ""))
	assert.Empty(t, replies)
}

func TestUnknownLanguageReprompts(t *testing.T) {
	f := testFlow(&fakeCredentials{}, &fakeSlots{})
	ctx := context.Background()

	f.Handle(ctx, event(domain.EventStart, "", ""))
	replies := f.Handle(ctx, event(domain.EventText, "Esperanto", ""))

	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Body, "Please select from the buttons")
	assert.Equal(t, domain.StateAwaitingLanguage, f.Sessions().Get("42").State)
}

func TestLanguageWithoutCredentialSendsConnectLink(t *testing.T) {
	f := testFlow(&fakeCredentials{}, &fakeSlots{})
	ctx := context.Background()

	f.Handle(ctx, event(domain.EventStart, "", ""))
	replies := f.Handle(ctx, event(domain.EventText, "🇺🇿 Uzbek", ""))

	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Body, "connect your Calendly account")
	assert.Contains(t, replies[0].Body, "https://bot.example.com/auth/connect?telegram_id=42")

	session := f.Sessions().Get("42")
	assert.Equal(t, "uz", session.Language)
	assert.Equal(t, domain.StateAwaitingLanguage, session.State)
}

func TestLanguageWithCredentialListsSlots(t *testing.T) {
	slots := &fakeSlots{slots: []scheduling.Slot{
		{ISO: "2026-09-01T10:00:00Z", Display: "2026-09-01 10:00:00"},
		{ISO: "2026-09-01T11:00:00Z", Display: "2026-09-01 11:00:00"},
	}}
	f := testFlow(&fakeCredentials{tokens: map[string]string{"42": "cal-token"}}, slots)
	ctx := context.Background()

	f.Handle(ctx, event(domain.EventStart, "", ""))
	replies := f.Handle(ctx, event(domain.EventText, "🇬🇧 English", ""))

	require.Len(t, replies, 2)
	assert.Contains(t, replies[0].Body, "Fetching your available time slots")
	assert.Contains(t, replies[1].Body, "Available time slots")
	require.Len(t, replies[1].Buttons, 2)
	assert.Equal(t, "2026-09-01 10:00:00", replies[1].Buttons[0].Label)
	assert.Equal(t, "book:2026-09-01T10:00:00Z", replies[1].Buttons[0].Data)

	assert.Equal(t, "cal-token", slots.lastToken)
	assert.Equal(t, domain.StateAwaitingSlot, f.Sessions().Get("42").State)
}

func TestSlotFetchFailureKeepsState(t *testing.T) {
	f := testFlow(
		&fakeCredentials{tokens: map[string]string{"42": "cal-token"}},
		&fakeSlots{err: errors.New("upstream exploded")},
	)
	ctx := context.Background()

	f.Handle(ctx, event(domain.EventStart, "", ""))
	replies := f.Handle(ctx, event(domain.EventText, "🇬🇧 English", ""))

	require.Len(t, replies, 2)
	assert.Contains(t, replies[1].Body, "Failed to fetch slots")
	assert.Equal(t, domain.StateAwaitingLanguage, f.Sessions().Get("42").State)
}

func TestNoSlotsKeepsState(t *testing.T) {
	f := testFlow(&fakeCredentials{tokens: map[string]string{"42": "cal-token"}}, &fakeSlots{})
	ctx := context.Background()

	f.Handle(ctx, event(domain.EventStart, "", ""))
	replies := f.Handle(ctx, event(domain.EventText, "🇬🇧 English", ""))

	require.Len(t, replies, 2)
	assert.Contains(t, replies[1].Body, "No available slots")
	assert.Equal(t, domain.StateAwaitingLanguage, f.Sessions().Get("42").State)
}

func TestCredentialLookupFailure(t *testing.T) {
	f := testFlow(&fakeCredentials{err: errors.New("db locked")}, &fakeSlots{})
	ctx := context.Background()

	f.Handle(ctx, event(domain.EventStart, "", ""))
	replies := f.Handle(ctx, event(domain.EventText, "🇬🇧 English", ""))

	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Body, "Something went wrong")
}

func TestSlotSelection(t *testing.T) {
	f := testFlow(&fakeCredentials{tokens: map[string]string{"42": "cal-token"}}, &fakeSlots{
		slots: []scheduling.Slot{{ISO: "2026-09-01T10:00:00Z", Display: "2026-09-01 10:00:00"}},
	})
	ctx := context.Background()

	f.Handle(ctx, event(domain.EventStart, "", ""))
	f.Handle(ctx, event(domain.EventText, "🇬🇧 English", ""))

	replies := f.Handle(ctx, event(domain.EventSelect, "", "book:2026-09-01T10:00:00Z"))
	require.Len(t, replies, 2)
	assert.Contains(t, replies[0].Body, "You selected: 2026-09-01 10:00:00")
	assert.Contains(t, replies[1].Body, "Payment flow will begin here")

	assert.Equal(t, "2026-09-01T10:00:00Z", f.Sessions().Get("42").SelectedSlot)
}

func TestSelectionOutsideSlotStateIgnored(t *testing.T) {
	f := testFlow(&fakeCredentials{}, &fakeSlots{})
	ctx := context.Background()

	// no session at all
	replies := f.Handle(ctx, event(domain.EventSelect, "", "book:2026-09-01T10:00:00Z"))
	assert.Empty(t, replies)

	// awaiting language, not slot
	f.Handle(ctx, event(domain.EventStart, "", ""))
	replies = f.Handle(ctx, event(domain.EventSelect, "", "book:2026-09-01T10:00:00Z"))
	assert.Empty(t, replies)
}

func TestLanguageViaButtonSelection(t *testing.T) {
	f := testFlow(&fakeCredentials{}, &fakeSlots{})
	ctx := context.Background()

	f.Handle(ctx, event(domain.EventStart, "", ""))
	replies := f.Handle(ctx, event(domain.EventSelect, "", "🇷🇺 Русский"))

	require.Len(t, replies, 1)
	assert.Equal(t, "ru", f.Sessions().Get("42").Language)
}

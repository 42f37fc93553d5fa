package domain

import "time"

// SessionState is a step of the booking conversation.
type SessionState string

const (
	// StateAwaitingLanguage waits for the user to pick a language.
	StateAwaitingLanguage SessionState = "awaiting_language"
	// StateAwaitingSlot waits for the user to pick an appointment slot.
	StateAwaitingSlot SessionState = "awaiting_slot"
)

// Session tracks one user's progress through the booking conversation.
// Sessions live in memory only; a restart always begins a fresh one.
type Session struct {
	ID           string       `json:"id"`
	Identity     string       `json:"identity"`
	ChannelID    string       `json:"channelId"`
	ChatID       string       `json:"chatId"`
	State        SessionState `json:"state"`
	Language     string       `json:"language,omitempty"`
	SelectedSlot string       `json:"selectedSlot,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

package irc

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/gostudy/bookbot/internal/domain"
)

// keyboardTracker remembers the last keyboard shown to each user so a
// plain numeric reply can be mapped back to the button it names. A new
// keyboard replaces the previous one for that user.
type keyboardTracker struct {
	mu      sync.Mutex
	pending map[string][]domain.Button
}

func newKeyboardTracker() *keyboardTracker {
	return &keyboardTracker{pending: make(map[string][]domain.Button)}
}

func (t *keyboardTracker) set(nick string, buttons []domain.Button) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[nick] = buttons
}

func (t *keyboardTracker) clear(nick string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, nick)
}

// resolve maps a reply to a pending button. Both the number and the
// exact label are accepted. The keyboard stays pending so a mistyped
// follow-up can still pick correctly.
func (t *keyboardTracker) resolve(nick, reply string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	buttons, ok := t.pending[nick]
	if !ok {
		return "", false
	}

	reply = strings.TrimSpace(reply)
	if n, err := strconv.Atoi(reply); err == nil {
		if n >= 1 && n <= len(buttons) {
			return buttons[n-1].Data, true
		}
		return "", false
	}
	for _, b := range buttons {
		if strings.EqualFold(b.Label, reply) {
			return b.Data, true
		}
	}
	return "", false
}

// renderKeyboard formats buttons as numbered lines.
func renderKeyboard(buttons []domain.Button) string {
	lines := make([]string, 0, len(buttons))
	for i, b := range buttons {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, b.Label))
	}
	return strings.Join(lines, "\n")
}

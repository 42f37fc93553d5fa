package flow

import "github.com/gostudy/bookbot/internal/domain"

// Languages maps the labels offered on the language keyboard to
// language codes stored on the session.
var Languages = map[string]string{
	"🇺🇿 Uzbek":   "uz",
	"🇷🇺 Русский": "ru",
	"🇬🇧 English": "en",
}

// languageOrder fixes keyboard ordering; map iteration would shuffle it.
var languageOrder = []string{"🇺🇿 Uzbek", "🇷🇺 Русский", "🇬🇧 English"}

func languageKeyboard() []domain.Button {
	buttons := make([]domain.Button, 0, len(languageOrder))
	for _, label := range languageOrder {
		buttons = append(buttons, domain.Button{Label: label, Data: label})
	}
	return buttons
}

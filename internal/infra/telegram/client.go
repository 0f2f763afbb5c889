// internal/infra/telegram/client.go
package telegram

import (
	"strings"

	"gopkg.in/telebot.v3"
)

// maxMessageLength is Telegram's limit for one text message.
const maxMessageLength = 4096

// TelebotAdapter implements the Messenger interface using the gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendMessage sends text to a user, group or channel by chat ID. Long texts
// are split on line boundaries; options apply to every part but the reply
// markup is attached to the last one only.
func (tba *TelebotAdapter) SendMessage(chatID int64, text string, options *telebot.SendOptions) error {
	if options == nil {
		options = &telebot.SendOptions{}
	}

	recipient := telebot.ChatID(chatID)
	parts := splitMessage(text, maxMessageLength)
	for i, part := range parts {
		opts := options
		if i < len(parts)-1 && options.ReplyMarkup != nil {
			partOpts := *options
			partOpts.ReplyMarkup = nil
			opts = &partOpts
		}
		if _, err := tba.bot.Send(recipient, part, opts); err != nil {
			return err
		}
	}
	return nil
}

// splitMessage cuts text into chunks of at most limit bytes, preferring to
// cut after a newline.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var parts []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n") + 1
		if cut <= 0 {
			cut = limit
			// Do not split a multi-byte rune.
			for cut > 0 && !isRuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				cut = limit
			}
		}
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

package telegram

import "gopkg.in/telebot.v3"

// Messenger defines an interface for sending messages via a Telegram bot.
// The broadcast channel, the operator and individual subscribers are all
// addressed by chat ID.
type Messenger interface {
	SendMessage(chatID int64, text string, options *telebot.SendOptions) error
}

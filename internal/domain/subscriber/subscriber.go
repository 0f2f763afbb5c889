package subscriber

import (
	"database/sql"
	"time"
)

// Channel says how a subscriber wants to be reached.
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelSMS      Channel = "sms"
	ChannelBoth     Channel = "both"
)

// WantsTelegram reports whether the channel includes Telegram delivery.
func (c Channel) WantsTelegram() bool { return c == ChannelTelegram || c == ChannelBoth }

// WantsSMS reports whether the channel includes SMS delivery.
func (c Channel) WantsSMS() bool { return c == ChannelSMS || c == ChannelBoth }

// Subscriber is someone interested in one or more named centers.
// Corresponds to the 'subscribers' table.
type Subscriber struct {
	ID             int64
	TelegramID     sql.NullInt64
	PhoneNumber    sql.NullString
	Channel        Channel
	WatchedCenters []string
	CreatedAt      time.Time
}

// Watches reports whether centerName is in the subscriber's watch list.
func (s *Subscriber) Watches(centerName string) bool {
	for _, c := range s.WatchedCenters {
		if c == centerName {
			return true
		}
	}
	return false
}

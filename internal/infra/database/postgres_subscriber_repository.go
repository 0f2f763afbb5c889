package database

import (
	"context"
	"database/sql"
	"fmt"

	"housemanship_bot/internal/domain/subscriber"

	"github.com/lib/pq"
)

// PostgresSubscriberRepository reads the subscribers table, which is owned
// and written by the registration side:
//
//	subscribers(id, telegram_id, phone_number, notification_channel,
//	            watched_hospitals text[], is_active, created_at)
type PostgresSubscriberRepository struct {
	db *sql.DB
}

func NewPostgresSubscriberRepository(db *sql.DB) *PostgresSubscriberRepository {
	return &PostgresSubscriberRepository{db: db}
}

// FindWatchingAny returns active subscribers whose watch list overlaps
// centerNames. The overlap is computed by Postgres.
func (r *PostgresSubscriberRepository) FindWatchingAny(ctx context.Context, centerNames []string) ([]*subscriber.Subscriber, error) {
	if len(centerNames) == 0 {
		return []*subscriber.Subscriber{}, nil
	}

	query := `SELECT id, telegram_id, phone_number, notification_channel, watched_hospitals, created_at
               FROM subscribers
               WHERE is_active = TRUE AND watched_hospitals && $1::text[]
               ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(centerNames))
	if err != nil {
		return nil, fmt.Errorf("error querying subscribers by watched hospitals: %w", err)
	}
	defer rows.Close()

	var subs []*subscriber.Subscriber
	for rows.Next() {
		s := &subscriber.Subscriber{}
		var channel string
		var watched pq.StringArray
		if err := rows.Scan(&s.ID, &s.TelegramID, &s.PhoneNumber, &channel, &watched, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning subscriber row: %w", err)
		}
		s.Channel = parseChannel(channel)
		s.WatchedCenters = []string(watched)
		subs = append(subs, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriber rows: %w", err)
	}
	return subs, nil
}

// parseChannel maps the stored channel name; unknown values fall back to Telegram.
func parseChannel(v string) subscriber.Channel {
	switch subscriber.Channel(v) {
	case subscriber.ChannelSMS:
		return subscriber.ChannelSMS
	case subscriber.ChannelBoth:
		return subscriber.ChannelBoth
	default:
		return subscriber.ChannelTelegram
	}
}

// internal/domain/notification/task.go
package notification

import (
	"time"

	"housemanship_bot/internal/domain/subscriber"
	"housemanship_bot/internal/domain/vacancy"

	"github.com/google/uuid"
)

// Task is one pending delivery to one subscriber. Tasks are values: once
// queued nothing else holds a reference to their contents.
type Task struct {
	ID             uuid.UUID
	Subscriber     subscriber.Subscriber
	Channel        subscriber.Channel
	MatchedEntries []vacancy.Entry
	EnqueuedAt     time.Time
}

// NewTask builds a task for sub carrying only the entries it watches.
// It returns nil when none of the entries are watched.
func NewTask(sub *subscriber.Subscriber, added []vacancy.Entry, now time.Time) *Task {
	matched := make([]vacancy.Entry, 0, len(added))
	for _, e := range added {
		if sub.Watches(e.CenterName) {
			matched = append(matched, e)
		}
	}
	if len(matched) == 0 {
		return nil
	}

	watched := make([]string, len(sub.WatchedCenters))
	copy(watched, sub.WatchedCenters)
	copySub := *sub
	copySub.WatchedCenters = watched

	return &Task{
		ID:             uuid.New(),
		Subscriber:     copySub,
		Channel:        sub.Channel,
		MatchedEntries: matched,
		EnqueuedAt:     now,
	}
}

// CenterNames returns the matched center names in order.
func (t *Task) CenterNames() []string {
	out := make([]string, 0, len(t.MatchedEntries))
	for _, e := range t.MatchedEntries {
		out = append(out, e.CenterName)
	}
	return out
}

package notification

import (
	"testing"
	"time"

	"housemanship_bot/internal/domain/subscriber"
	"housemanship_bot/internal/domain/vacancy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask_KeepsOnlyWatchedEntries(t *testing.T) {
	now := time.Now()
	sub := &subscriber.Subscriber{ID: 7, Channel: subscriber.ChannelBoth, WatchedCenters: []string{"H1", "H2"}}
	added := []vacancy.Entry{{CenterName: "H1", SlotsLeft: 3}, {CenterName: "H9", SlotsLeft: 1}}

	task := NewTask(sub, added, now)

	require.NotNil(t, task)
	assert.Equal(t, []vacancy.Entry{{CenterName: "H1", SlotsLeft: 3}}, task.MatchedEntries)
	assert.Equal(t, subscriber.ChannelBoth, task.Channel)
	assert.Equal(t, now, task.EnqueuedAt)
	assert.Equal(t, []string{"H1"}, task.CenterNames())
}

func TestNewTask_NoMatchReturnsNil(t *testing.T) {
	sub := &subscriber.Subscriber{WatchedCenters: []string{"H3"}}
	assert.Nil(t, NewTask(sub, []vacancy.Entry{{CenterName: "H1"}}, time.Now()))
}

func TestNewTask_DoesNotShareSubscriberSlice(t *testing.T) {
	sub := &subscriber.Subscriber{WatchedCenters: []string{"H1"}}
	task := NewTask(sub, []vacancy.Entry{{CenterName: "H1"}}, time.Now())
	require.NotNil(t, task)

	sub.WatchedCenters[0] = "changed"

	assert.Equal(t, []string{"H1"}, task.Subscriber.WatchedCenters)
}

package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePoller struct {
	calls       atomic.Int32
	block       chan struct{}
	mu          sync.Mutex
	hadDeadline bool
}

func (p *fakePoller) RunCycle(ctx context.Context) error {
	p.calls.Add(1)
	_, ok := ctx.Deadline()
	p.mu.Lock()
	p.hadDeadline = ok
	p.mu.Unlock()
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
		}
	}
	return nil
}

type fakeQuiet struct{}

func (fakeQuiet) CheckQuiet(context.Context) bool { return false }

type fakeDrainer struct{}

func (fakeDrainer) Drain(context.Context) bool { return true }

func newTestScheduler() *PollingScheduler {
	logger, _ := test.NewNullLogger()
	return NewPollingScheduler(Config{
		InitialInterval:    60 * time.Second,
		QuietCheckInterval: time.Hour,
		DrainInterval:      2 * time.Hour,
		CycleTimeout:       time.Minute,
	}, logrus.NewEntry(logger))
}

func delays(s *PollingScheduler) []time.Duration {
	var out []time.Duration
	for _, e := range s.cronEngine.Entries() {
		out = append(out, e.Schedule.(cron.ConstantDelaySchedule).Delay)
	}
	return out
}

func TestStartRegistersJobsAndPollsImmediately(t *testing.T) {
	s := newTestScheduler()
	poller := &fakePoller{}

	s.Start(poller, fakeQuiet{}, fakeDrainer{})
	defer s.Stop()

	require.Eventually(t, func() bool { return poller.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []time.Duration{60 * time.Second, time.Hour, 2 * time.Hour}, delays(s))

	poller.mu.Lock()
	assert.True(t, poller.hadDeadline, "each cycle runs under a timeout")
	poller.mu.Unlock()
}

func TestSetIntervalReplacesPollEntry(t *testing.T) {
	s := newTestScheduler()
	s.Start(&fakePoller{}, fakeQuiet{}, fakeDrainer{})
	defer s.Stop()

	s.SetInterval(30 * time.Second)
	assert.ElementsMatch(t, []time.Duration{30 * time.Second, time.Hour, 2 * time.Hour}, delays(s))

	s.SetInterval(15 * time.Second)
	assert.ElementsMatch(t, []time.Duration{15 * time.Second, time.Hour, 2 * time.Hour}, delays(s))
	assert.Equal(t, 15*time.Second, s.Interval())

	s.SetInterval(15 * time.Second)
	assert.Len(t, s.cronEngine.Entries(), 3, "same interval is a no-op")
}

func TestSetIntervalBeforeStart(t *testing.T) {
	s := newTestScheduler()
	s.SetInterval(30 * time.Second)
	assert.Empty(t, s.cronEngine.Entries())

	s.Start(&fakePoller{}, fakeQuiet{}, fakeDrainer{})
	defer s.Stop()

	assert.Contains(t, delays(s), 30*time.Second)
}

func TestPollCyclesNeverOverlap(t *testing.T) {
	s := newTestScheduler()
	poller := &fakePoller{block: make(chan struct{})}
	s.Start(poller, fakeQuiet{}, fakeDrainer{})

	require.Eventually(t, func() bool { return poller.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	s.pollJob.Run()
	assert.Equal(t, int32(1), poller.calls.Load(), "second run skipped while first is in flight")

	close(poller.block)
	s.Stop()
}

func TestStopCancelsRunningCycle(t *testing.T) {
	s := newTestScheduler()
	poller := &fakePoller{block: make(chan struct{})}
	s.Start(poller, fakeQuiet{}, fakeDrainer{})
	require.Eventually(t, func() bool { return poller.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Poller runs one polling cycle.
type Poller interface {
	RunCycle(ctx context.Context) error
}

// QuietChecker resets the cadence after a quiet period.
type QuietChecker interface {
	CheckQuiet(ctx context.Context) bool
}

// Drainer empties the notification queue.
type Drainer interface {
	Drain(ctx context.Context) bool
}

type Config struct {
	InitialInterval    time.Duration
	QuietCheckInterval time.Duration
	DrainInterval      time.Duration
	// CycleTimeout bounds one polling cycle, including a login that waits
	// for the operator's OTP.
	CycleTimeout time.Duration
}

// PollingScheduler drives the poll, quiet-check and drain jobs on one cron
// engine. The poll job is rescheduled in place when the cadence changes.
type PollingScheduler struct {
	cronEngine *cron.Cron
	cfg        Config
	logger     *logrus.Entry

	ctx     context.Context
	cancel  context.CancelFunc
	initial sync.WaitGroup

	mu       sync.Mutex
	poller   Poller
	pollJob  cron.Job
	pollID   cron.EntryID
	interval time.Duration
}

func NewPollingScheduler(cfg Config, logger *logrus.Entry) *PollingScheduler {
	log := logger.WithField("component", "scheduler")
	cronLogger := cron.PrintfLogger(log)
	ctx, cancel := context.WithCancel(context.Background())
	return &PollingScheduler{
		cronEngine: cron.New(
			cron.WithLocation(time.Local),
			cron.WithChain(cron.Recover(cronLogger)),
		),
		cfg:      cfg,
		logger:   log,
		ctx:      ctx,
		cancel:   cancel,
		interval: cfg.InitialInterval,
	}
}

// Start registers the jobs, runs one poll right away and starts the engine.
func (s *PollingScheduler) Start(poller Poller, quiet QuietChecker, drainer Drainer) {
	s.logger.Info("Starting polling scheduler...")

	s.mu.Lock()
	s.poller = poller
	s.pollJob = s.wrap(cron.FuncJob(s.poll))
	s.pollID = s.cronEngine.Schedule(cron.Every(s.interval), s.pollJob)
	s.mu.Unlock()

	s.cronEngine.Schedule(cron.Every(s.cfg.QuietCheckInterval), cron.FuncJob(func() {
		quiet.CheckQuiet(s.ctx)
	}))

	s.cronEngine.Schedule(cron.Every(s.cfg.DrainInterval), cron.FuncJob(func() {
		drainer.Drain(s.ctx)
	}))

	s.initial.Add(1)
	go func() {
		defer s.initial.Done()
		s.pollJob.Run()
	}()

	s.cronEngine.Start()
	s.logger.WithField("interval", s.interval.String()).Info("Polling scheduler started with jobs.")
}

// SetInterval replaces the poll entry with one firing every d. The new entry
// is added before the old one is removed, so polling never stops.
func (s *PollingScheduler) SetInterval(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d == s.interval {
		return
	}
	s.interval = d
	if s.pollJob == nil {
		return
	}

	oldID := s.pollID
	s.pollID = s.cronEngine.Schedule(cron.Every(d), s.pollJob)
	s.cronEngine.Remove(oldID)
	s.logger.WithField("interval", d.String()).Info("Polling interval changed")
}

// Interval returns the poll interval in effect.
func (s *PollingScheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Stop stops the engine and waits for running jobs to finish.
func (s *PollingScheduler) Stop() {
	s.logger.Info("Stopping polling scheduler...")
	s.cancel()
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.initial.Wait()
	s.logger.Info("Polling scheduler gracefully stopped.")
}

// wrap gives the poll job its own SkipIfStillRunning guard, shared by the
// immediate first run and every entry SetInterval creates.
func (s *PollingScheduler) wrap(j cron.Job) cron.Job {
	logger := cron.PrintfLogger(s.logger)
	return cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)).Then(j)
}

func (s *PollingScheduler) poll() {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.CycleTimeout)
	defer cancel()

	if err := s.poller.RunCycle(ctx); err != nil {
		s.logger.WithError(err).Debug("Polling cycle ended with error")
	}
}

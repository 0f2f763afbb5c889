package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"housemanship_bot/internal/domain/auth"
	domainTelegram "housemanship_bot/internal/domain/telegram"
	"housemanship_bot/internal/domain/vacancy"
)

// TokenSource hands out portal tokens.
type TokenSource interface {
	GetToken(ctx context.Context) (auth.Token, error)
	Invalidate()
}

// IntervalSetter reschedules the polling job.
type IntervalSetter interface {
	SetInterval(d time.Duration)
}

// VacancyQueue accepts newly added vacancies for subscriber notification.
type VacancyQueue interface {
	Queue(ctx context.Context, added []vacancy.Entry) error
}

type MonitorConfig struct {
	BroadcastChatID int64
	OperatorChatID  int64
	LoginPageURL    string
	QuietPeriod     time.Duration
	// FailureWarnEvery logs a warning every N consecutive failed cycles.
	FailureWarnEvery int
}

// VacancyMonitor runs one fetch-and-diff cycle at a time and owns the last
// known snapshot.
type VacancyMonitor struct {
	source    vacancy.Source
	tokens    TokenSource
	messenger domainTelegram.Messenger
	cadence   *Cadence
	intervals IntervalSetter
	queue     VacancyQueue
	cfg       MonitorConfig
	logger    *logrus.Entry
	now       func() time.Time

	mu       sync.Mutex
	previous vacancy.Snapshot
	failures int
}

func NewVacancyMonitor(
	source vacancy.Source,
	tokens TokenSource,
	messenger domainTelegram.Messenger,
	cadence *Cadence,
	intervals IntervalSetter,
	queue VacancyQueue,
	cfg MonitorConfig,
	logger *logrus.Entry,
) *VacancyMonitor {
	if cfg.FailureWarnEvery <= 0 {
		cfg.FailureWarnEvery = 10
	}
	pollIntervalSeconds.Set(cadence.Interval().Seconds())
	return &VacancyMonitor{
		source:    source,
		tokens:    tokens,
		messenger: messenger,
		cadence:   cadence,
		intervals: intervals,
		queue:     queue,
		cfg:       cfg,
		logger:    logger.WithField("component", "vacancy_monitor"),
		now:       time.Now,
	}
}

// RunCycle fetches the portal listing and reacts to any change. A failed
// cycle leaves the snapshot and the cadence untouched.
func (m *VacancyMonitor) RunCycle(ctx context.Context) error {
	current, err := m.fetch(ctx)
	if err != nil {
		m.recordFailure(err)
		return err
	}
	m.recordSuccess()

	m.mu.Lock()
	previous := m.previous
	m.mu.Unlock()

	diff := vacancy.Diff(previous, current)
	if diff.Empty() {
		pollCyclesTotal.WithLabelValues(resultUnchanged).Inc()
		m.storeSnapshot(current)
		m.logger.WithField("centers", len(current)).Debug("No vacancy changes")
		return nil
	}

	pollCyclesTotal.WithLabelValues(resultChanged).Inc()
	vacancyChangesTotal.WithLabelValues("added").Add(float64(len(diff.Added)))
	vacancyChangesTotal.WithLabelValues("removed").Add(float64(len(diff.Removed)))
	m.logger.WithFields(logrus.Fields{
		"added":   vacancy.Snapshot(diff.Added).Names(),
		"removed": vacancy.Snapshot(diff.Removed).Names(),
	}).Info("Vacancy listing changed")

	m.broadcast(diff, current)

	if interval, changed := m.cadence.RecordChange(m.now()); changed {
		m.intervals.SetInterval(interval)
		pollIntervalSeconds.Set(interval.Seconds())
		m.logger.WithField("interval", interval.String()).Info("Polling sped up after activity")
	}

	if err := m.queue.Queue(ctx, diff.Added); err != nil {
		m.logger.WithError(err).Error("Subscriber notifications skipped for this change")
	}

	m.storeSnapshot(current)
	return nil
}

// CheckQuiet drops polling back to the baseline once no change was seen for
// the quiet period and tells the operator about it.
func (m *VacancyMonitor) CheckQuiet(ctx context.Context) bool {
	if !m.cadence.CheckQuiet(m.now()) {
		return false
	}
	baseline := m.cadence.Baseline()
	m.intervals.SetInterval(baseline)
	pollIntervalSeconds.Set(baseline.Seconds())
	m.logger.WithField("interval", baseline.String()).Info("No activity for the quiet period, polling reset to baseline")

	text := fmt.Sprintf(quietResetNotice, m.cfg.QuietPeriod, baseline)
	if err := m.messenger.SendMessage(m.cfg.OperatorChatID, text, nil); err != nil {
		m.logger.WithError(err).Warn("Failed to send quiet period notice")
	}
	return true
}

// CurrentVacancies fetches the listing on demand. A successful fetch also
// becomes the stored snapshot, so the next cycle diffs against it.
func (m *VacancyMonitor) CurrentVacancies(ctx context.Context) (vacancy.Snapshot, error) {
	current, err := m.fetch(ctx)
	if err != nil {
		return nil, err
	}
	m.storeSnapshot(current)
	return current, nil
}

// Snapshot returns the stored snapshot.
func (m *VacancyMonitor) Snapshot() vacancy.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.previous
}

func (m *VacancyMonitor) fetch(ctx context.Context) (vacancy.Snapshot, error) {
	tok, err := m.tokens.GetToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	current, err := m.source.FetchVacancies(ctx, tok.Value)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			m.tokens.Invalidate()
		}
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if len(current) == 0 {
		return nil, ErrEmptySnapshot
	}
	return current, nil
}

func (m *VacancyMonitor) broadcast(diff vacancy.DiffResult, current vacancy.Snapshot) {
	opts := &telebot.SendOptions{
		ParseMode:   telebot.ModeMarkdown,
		ReplyMarkup: portalLoginMarkup(m.cfg.LoginPageURL),
	}
	if err := m.messenger.SendMessage(m.cfg.BroadcastChatID, FormatUpdateMessage(diff, current), opts); err != nil {
		m.logger.WithError(err).Error("Failed to broadcast vacancy update")
	}
}

func (m *VacancyMonitor) storeSnapshot(s vacancy.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.previous = s
}

func (m *VacancyMonitor) recordFailure(err error) {
	pollCyclesTotal.WithLabelValues(resultFailed).Inc()

	m.mu.Lock()
	m.failures++
	n := m.failures
	m.mu.Unlock()
	consecutiveFetchFailures.Set(float64(n))

	log := m.logger.WithError(err).WithField("consecutive_failures", n)
	if n%m.cfg.FailureWarnEvery == 0 {
		log.Warn("Portal has been failing for several cycles")
		return
	}
	log.Info("Polling cycle skipped")
}

func (m *VacancyMonitor) recordSuccess() {
	m.mu.Lock()
	n := m.failures
	m.failures = 0
	m.mu.Unlock()
	consecutiveFetchFailures.Set(0)
	if n > 0 {
		m.logger.WithField("failed_cycles", n).Info("Portal fetch recovered")
	}
}

package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/telebot.v3"

	"housemanship_bot/internal/domain/notification"
	"housemanship_bot/internal/domain/sms"
	"housemanship_bot/internal/domain/subscriber"
	domainTelegram "housemanship_bot/internal/domain/telegram"
	"housemanship_bot/internal/domain/vacancy"
)

type DispatcherConfig struct {
	BatchSize     int
	BatchPause    time.Duration
	WarnThreshold int
	// Capacity bounds the queue; when exceeded the oldest tasks are dropped.
	// Zero means unbounded.
	Capacity int
}

// NotificationDispatcher turns newly added vacancies into one task per
// interested subscriber and delivers them in rate-friendly batches.
type NotificationDispatcher struct {
	subscribers subscriber.Repository
	messenger   domainTelegram.Messenger
	sms         sms.Sender
	cfg         DispatcherConfig
	logger      *logrus.Entry
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	queue    []*notification.Task
	draining atomic.Bool
}

func NewNotificationDispatcher(
	subscribers subscriber.Repository,
	messenger domainTelegram.Messenger,
	smsSender sms.Sender,
	cfg DispatcherConfig,
	logger *logrus.Entry,
) *NotificationDispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	return &NotificationDispatcher{
		subscribers: subscribers,
		messenger:   messenger,
		sms:         smsSender,
		cfg:         cfg,
		logger:      logger.WithField("component", "dispatcher"),
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// Queue looks up every subscriber watching at least one of the added centers
// and appends a task for each. A failed lookup leaves the queue untouched.
func (d *NotificationDispatcher) Queue(ctx context.Context, added []vacancy.Entry) error {
	if len(added) == 0 {
		return nil
	}

	names := vacancy.Snapshot(added).Names()
	subs, err := d.subscribers.FindWatchingAny(ctx, names)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrSubscriberQuery, err)
		d.logger.WithError(err).WithField("centers", names).Error("Could not load subscribers for new vacancies")
		return err
	}

	now := d.now()
	tasks := make([]*notification.Task, 0, len(subs))
	for _, sub := range subs {
		if task := notification.NewTask(sub, added, now); task != nil {
			tasks = append(tasks, task)
		}
	}

	d.mu.Lock()
	d.queue = append(d.queue, tasks...)
	dropped := 0
	if d.cfg.Capacity > 0 && len(d.queue) > d.cfg.Capacity {
		dropped = len(d.queue) - d.cfg.Capacity
		d.queue = append([]*notification.Task(nil), d.queue[dropped:]...)
	}
	pending := len(d.queue)
	d.mu.Unlock()
	notificationQueueDepth.Set(float64(pending))

	if dropped > 0 {
		notificationsDroppedTotal.Add(float64(dropped))
		d.logger.WithFields(logrus.Fields{
			"dropped":  dropped,
			"capacity": d.cfg.Capacity,
		}).Error("Notification queue full, oldest tasks dropped")
	}

	d.logger.WithFields(logrus.Fields{
		"centers": len(names),
		"queued":  len(tasks),
		"pending": pending,
	}).Info("Notification tasks queued")
	if d.cfg.WarnThreshold > 0 && pending > d.cfg.WarnThreshold {
		d.logger.WithField("pending", pending).Warn("Notification queue is growing faster than it drains")
	}
	return nil
}

// Drain delivers queued tasks batch by batch until the queue is empty or ctx
// is done. Only one drain runs at a time; it returns false when it found
// another one in progress.
func (d *NotificationDispatcher) Drain(ctx context.Context) bool {
	if !d.draining.CompareAndSwap(false, true) {
		return false
	}
	defer d.draining.Store(false)

	for {
		batch := d.popBatch()
		if len(batch) == 0 {
			return true
		}

		var g errgroup.Group
		for _, task := range batch {
			task := task
			g.Go(func() error {
				d.deliver(ctx, task)
				return nil
			})
		}
		_ = g.Wait()

		if d.Pending() == 0 {
			return true
		}
		if err := d.sleep(ctx, d.cfg.BatchPause); err != nil {
			d.logger.WithError(err).WithField("pending", d.Pending()).Warn("Drain interrupted")
			return true
		}
	}
}

// Pending returns the number of queued tasks.
func (d *NotificationDispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

func (d *NotificationDispatcher) popBatch() []*notification.Task {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := min(d.cfg.BatchSize, len(d.queue))
	batch := make([]*notification.Task, n)
	copy(batch, d.queue[:n])
	d.queue = d.queue[n:]
	notificationQueueDepth.Set(float64(len(d.queue)))
	return batch
}

// deliver sends one task on each of its channels. Channels fail
// independently and nothing is retried.
func (d *NotificationDispatcher) deliver(ctx context.Context, task *notification.Task) {
	log := d.logger.WithFields(logrus.Fields{
		"task_id":       task.ID.String(),
		"subscriber_id": task.Subscriber.ID,
		"channel":       task.Channel,
	})

	if task.Channel.WantsTelegram() {
		if err := d.sendTelegram(task); err != nil {
			notificationDeliveriesTotal.WithLabelValues(string(subscriber.ChannelTelegram), statusFailed).Inc()
			log.WithError(err).Error("Telegram notification failed")
		} else {
			notificationDeliveriesTotal.WithLabelValues(string(subscriber.ChannelTelegram), statusSent).Inc()
		}
	}

	if task.Channel.WantsSMS() {
		if err := d.sendSMS(ctx, task); err != nil {
			notificationDeliveriesTotal.WithLabelValues(string(subscriber.ChannelSMS), statusFailed).Inc()
			log.WithError(err).Error("SMS notification failed")
		} else {
			notificationDeliveriesTotal.WithLabelValues(string(subscriber.ChannelSMS), statusSent).Inc()
		}
	}
}

func (d *NotificationDispatcher) sendTelegram(task *notification.Task) error {
	if !task.Subscriber.TelegramID.Valid {
		return fmt.Errorf("%w: subscriber %d has no telegram id", ErrDispatch, task.Subscriber.ID)
	}
	text := FormatSubscriberAlert(task.MatchedEntries)
	opts := &telebot.SendOptions{ParseMode: telebot.ModeMarkdown}
	if err := d.messenger.SendMessage(task.Subscriber.TelegramID.Int64, text, opts); err != nil {
		return fmt.Errorf("%w: telegram: %w", ErrDispatch, err)
	}
	return nil
}

func (d *NotificationDispatcher) sendSMS(ctx context.Context, task *notification.Task) error {
	if d.sms == nil {
		return fmt.Errorf("%w: %w", ErrDispatch, sms.ErrDisabled)
	}
	if !task.Subscriber.PhoneNumber.Valid || task.Subscriber.PhoneNumber.String == "" {
		return fmt.Errorf("%w: subscriber %d has no phone number", ErrDispatch, task.Subscriber.ID)
	}
	if err := d.sms.SendTemplate(ctx, task.Subscriber.PhoneNumber.String, task.CenterNames()); err != nil {
		return fmt.Errorf("%w: sms: %w", ErrDispatch, err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

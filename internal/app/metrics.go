package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pollCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "housemanship_poll_cycles_total",
		Help: "Polling cycles by result (changed, unchanged, failed).",
	}, []string{"result"})

	vacancyChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "housemanship_vacancy_changes_total",
		Help: "Centers added to or removed from the portal listing.",
	}, []string{"kind"})

	consecutiveFetchFailures = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "housemanship_consecutive_fetch_failures",
		Help: "Polling cycles failed in a row since the last successful fetch.",
	})

	pollIntervalSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "housemanship_poll_interval_seconds",
		Help: "Polling interval currently in effect.",
	})

	notificationQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "housemanship_notification_queue_depth",
		Help: "Notification tasks waiting to be dispatched.",
	})

	notificationsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "housemanship_notifications_dropped_total",
		Help: "Tasks dropped because the notification queue was full.",
	})

	notificationDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "housemanship_notification_deliveries_total",
		Help: "Notification deliveries by channel and status.",
	}, []string{"channel", "status"})

	authLoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "housemanship_auth_logins_total",
		Help: "Portal login sequences by outcome.",
	}, []string{"outcome"})
)

const (
	resultChanged   = "changed"
	resultUnchanged = "unchanged"
	resultFailed    = "failed"

	statusSent   = "sent"
	statusFailed = "failed"
)

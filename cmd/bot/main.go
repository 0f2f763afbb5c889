package main

import (
	"context"
	"database/sql"
	"net"
	"os/signal"
	"syscall"
	"time"

	"housemanship_bot/internal/app"
	domainSMS "housemanship_bot/internal/domain/sms"
	"housemanship_bot/internal/infra/config"
	idb "housemanship_bot/internal/infra/database"
	"housemanship_bot/internal/infra/logger"
	"housemanship_bot/internal/infra/portal"
	"housemanship_bot/internal/infra/scheduler"
	"housemanship_bot/internal/infra/sms"
	"housemanship_bot/internal/infra/telegram"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.WithError(err).Fatal("Could not load application configuration")
	}
	logger.Init(cfg)

	baseLogger := logger.Component("housemanship-bot")
	baseLogger.WithFields(logrus.Fields{
		"environment":   cfg.Environment,
		"log_level":     cfg.LogLevel,
		"poll_baseline": cfg.Poll.Baseline.String(),
		"sms_enabled":   cfg.SMS.Enabled(),
	}).Info("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		baseLogger.WithError(err).Fatal("Could not connect to database")
	}
	prometheus.MustRegister(collectors.NewDBStatsCollector(db, "subscribers"))
	baseLogger.Info("Database connection established successfully.")

	bot, err := newBot(cfg, baseLogger)
	if err != nil {
		baseLogger.WithError(err).Fatal("Could not create Telegram bot")
	}
	messenger := telegram.NewTelebotAdapter(bot)

	portalClient := portal.NewClient(portal.Config{
		VacanciesURL: cfg.Portal.VacanciesURL,
		LoginURL:     cfg.Portal.LoginURL,
		OTPURL:       cfg.Portal.OTPURL,
		Timeout:      cfg.Portal.HTTPTimeout,
	}, baseLogger)

	tokens := app.NewTokenManager(portalClient, messenger, app.TokenManagerConfig{
		Email:          cfg.Portal.Email,
		Password:       cfg.Portal.Password,
		SafetyMargin:   cfg.Token.SafetyMargin,
		FallbackTTL:    cfg.Token.FallbackTTL,
		OTPTimeout:     cfg.Token.OTPTimeout,
		OperatorChatID: cfg.OperatorTelegram,
	}, baseLogger)

	var smsSender domainSMS.Sender
	var smsGateway *sms.Gateway
	if cfg.SMS.Enabled() {
		smsGateway = sms.NewGateway(sms.Config{
			URL:           cfg.SMS.GatewayURL,
			APIKey:        cfg.SMS.APIKey,
			DeviceID:      cfg.SMS.DeviceID,
			TemplateID:    cfg.SMS.TemplateID,
			Timeout:       cfg.Portal.HTTPTimeout,
			RatePerSecond: cfg.SMS.RatePerSecond,
		}, baseLogger)
		smsSender = smsGateway
	} else {
		baseLogger.Warn("SMS_GATEWAY_URL not set, SMS notifications are disabled")
	}

	dispatcher := app.NewNotificationDispatcher(
		idb.NewPostgresSubscriberRepository(db),
		messenger,
		smsSender,
		app.DispatcherConfig{
			BatchSize:     cfg.Queue.BatchSize,
			BatchPause:    cfg.Queue.BatchPause,
			WarnThreshold: cfg.Queue.WarnThreshold,
			Capacity:      cfg.Queue.Capacity,
		},
		baseLogger,
	)

	cadence := app.NewCadence(app.CadenceConfig{
		Baseline:    cfg.Poll.Baseline,
		Fast1:       cfg.Poll.Fast1,
		Fast2:       cfg.Poll.Fast2,
		QuietPeriod: cfg.Poll.QuietPeriod,
	})

	pollScheduler := scheduler.NewPollingScheduler(scheduler.Config{
		InitialInterval:    cadence.Interval(),
		QuietCheckInterval: cfg.Poll.QuietCheckInterval,
		DrainInterval:      cfg.Queue.DrainInterval,
		CycleTimeout:       cfg.Token.OTPTimeout + 3*cfg.Portal.HTTPTimeout,
	}, baseLogger)

	monitor := app.NewVacancyMonitor(portalClient, tokens, messenger, cadence, pollScheduler, dispatcher, app.MonitorConfig{
		BroadcastChatID: cfg.BroadcastChatID,
		OperatorChatID:  cfg.OperatorTelegram,
		LoginPageURL:    cfg.Portal.LoginPageURL,
		QuietPeriod:     cfg.Poll.QuietPeriod,
	}, baseLogger)

	telegram.NewOperatorHandlers(tokens, monitor, cfg.OperatorTelegram, baseLogger).Register(ctx, bot)
	baseLogger.Info("Operator handlers registered.")

	startStatusServer(ctx, net.JoinHostPort("", cfg.Port), statusSource{
		pollInterval:   pollScheduler.Interval,
		pendingTasks:   dispatcher.Pending,
		awaitingOTP:    tokens.AwaitingOTP,
		knownVacancies: func() int { return len(monitor.Snapshot()) },
		smsState:       smsStateFunc(smsGateway),
	}, baseLogger)

	go bot.Start()
	pollScheduler.Start(monitor, monitor, dispatcher)
	baseLogger.Info("Application setup complete. Bot and scheduler are running.")

	<-ctx.Done()

	baseLogger.Info("Shutting down application...")
	pollScheduler.Stop()
	bot.Stop()
	flushQueue(dispatcher, baseLogger)
	closeDB(db, baseLogger)
	baseLogger.Info("Application shut down gracefully.")
}

func newBot(cfg *config.AppConfig, baseLogger *logrus.Entry) (*telebot.Bot, error) {
	botLogger := baseLogger.WithField("component", "telebot")
	return telebot.NewBot(telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			entry := botLogger.WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithFields(logrus.Fields{
					"sender_id": c.Sender().ID,
					"chat_id":   c.Chat().ID,
				})
			}
			entry.Error("Telegram handler error")
		},
	})
}

func smsStateFunc(g *sms.Gateway) func() string {
	if g == nil {
		return nil
	}
	return func() string { return g.State().String() }
}

// flushQueue gives pending notifications a short window to go out before exit.
func flushQueue(dispatcher *app.NotificationDispatcher, baseLogger *logrus.Entry) {
	if dispatcher.Pending() == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	dispatcher.Drain(ctx)
	if n := dispatcher.Pending(); n > 0 {
		baseLogger.WithField("pending", n).Warn("Notifications left undelivered at shutdown")
	}
}

func closeDB(db *sql.DB, baseLogger *logrus.Entry) {
	if err := db.Close(); err != nil {
		baseLogger.WithError(err).Warn("Error closing database")
	}
}

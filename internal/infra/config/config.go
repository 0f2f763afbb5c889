package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultLoginPageURL = "https://www.housemanship.mdcn.gov.ng/login"

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken    string
	DatabaseURL      string
	OperatorTelegram int64
	BroadcastChatID  int64
	LogLevel         string
	Environment      string
	Port             string

	Portal PortalConfig
	Poll   PollConfig
	Queue  QueueConfig
	Token  TokenConfig
	SMS    SMSConfig
}

type PortalConfig struct {
	VacanciesURL string
	LoginURL     string
	OTPURL       string
	LoginPageURL string
	Email        string
	Password     string
	HTTPTimeout  time.Duration
}

type PollConfig struct {
	Baseline           time.Duration
	Fast1              time.Duration
	Fast2              time.Duration
	QuietPeriod        time.Duration
	QuietCheckInterval time.Duration
}

type QueueConfig struct {
	DrainInterval time.Duration
	BatchSize     int
	BatchPause    time.Duration
	WarnThreshold int
	Capacity      int
}

type TokenConfig struct {
	OTPTimeout   time.Duration
	SafetyMargin time.Duration
	FallbackTTL  time.Duration
}

// SMSConfig is optional; SMS delivery is disabled when GatewayURL is empty.
type SMSConfig struct {
	GatewayURL    string
	APIKey        string
	DeviceID      string
	TemplateID    string
	RatePerSecond float64
}

// Enabled reports whether an SMS gateway is configured.
func (c SMSConfig) Enabled() bool { return c.GatewayURL != "" }

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load does not override variables that are already set.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	if cfg.TelegramToken, err = required("TELEGRAM_TOKEN"); err != nil {
		return nil, err
	}
	if cfg.DatabaseURL, err = required("DATABASE_URL"); err != nil {
		return nil, err
	}
	if cfg.OperatorTelegram, err = requiredInt64("OPERATOR_TELEGRAM_ID"); err != nil {
		return nil, err
	}
	if cfg.BroadcastChatID, err = requiredInt64("BROADCAST_CHAT_ID"); err != nil {
		return nil, err
	}

	cfg.LogLevel = strings.ToLower(stringOr("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(stringOr("ENVIRONMENT", "development"))
	cfg.Port = stringOr("PORT", "4000")

	if cfg.Portal.VacanciesURL, err = required("PORTAL_VACANCIES_URL"); err != nil {
		return nil, err
	}
	if cfg.Portal.LoginURL, err = required("PORTAL_LOGIN_URL"); err != nil {
		return nil, err
	}
	if cfg.Portal.OTPURL, err = required("PORTAL_OTP_URL"); err != nil {
		return nil, err
	}
	if cfg.Portal.Email, err = required("PORTAL_EMAIL"); err != nil {
		return nil, err
	}
	if cfg.Portal.Password, err = required("PORTAL_PASSWORD"); err != nil {
		return nil, err
	}
	cfg.Portal.LoginPageURL = stringOr("PORTAL_LOGIN_PAGE_URL", defaultLoginPageURL)

	durations := []struct {
		dst *time.Duration
		key string
		def time.Duration
	}{
		{&cfg.Portal.HTTPTimeout, "HTTP_TIMEOUT", 20 * time.Second},
		{&cfg.Poll.Baseline, "POLL_BASELINE", 60 * time.Second},
		{&cfg.Poll.Fast1, "POLL_FAST1", 30 * time.Second},
		{&cfg.Poll.Fast2, "POLL_FAST2", 15 * time.Second},
		{&cfg.Poll.QuietPeriod, "QUIET_PERIOD", 24 * time.Hour},
		{&cfg.Poll.QuietCheckInterval, "QUIET_CHECK_INTERVAL", time.Minute},
		{&cfg.Queue.DrainInterval, "DRAIN_INTERVAL", 3 * time.Second},
		{&cfg.Queue.BatchPause, "DRAIN_BATCH_PAUSE", time.Second},
		{&cfg.Token.OTPTimeout, "OTP_TIMEOUT", 5 * time.Minute},
		{&cfg.Token.SafetyMargin, "TOKEN_SAFETY_MARGIN", time.Hour},
		{&cfg.Token.FallbackTTL, "TOKEN_FALLBACK_TTL", 12 * time.Hour},
	}
	for _, d := range durations {
		if *d.dst, err = durationOr(d.key, d.def); err != nil {
			return nil, err
		}
	}

	ints := []struct {
		dst *int
		key string
		def int
	}{
		{&cfg.Queue.BatchSize, "DRAIN_BATCH_SIZE", 10},
		{&cfg.Queue.WarnThreshold, "QUEUE_WARN_THRESHOLD", 500},
		{&cfg.Queue.Capacity, "QUEUE_CAPACITY", 5000},
	}
	for _, i := range ints {
		if *i.dst, err = intOr(i.key, i.def); err != nil {
			return nil, err
		}
	}

	cfg.SMS.GatewayURL = os.Getenv("SMS_GATEWAY_URL")
	cfg.SMS.APIKey = os.Getenv("SMS_API_KEY")
	cfg.SMS.DeviceID = os.Getenv("SMS_DEVICE_ID")
	cfg.SMS.TemplateID = os.Getenv("SMS_TEMPLATE_ID")
	if cfg.SMS.RatePerSecond, err = floatOr("SMS_RATE_PER_SEC", 5); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	if !(c.Poll.Baseline > c.Poll.Fast1 && c.Poll.Fast1 > c.Poll.Fast2 && c.Poll.Fast2 > 0) {
		return fmt.Errorf("poll intervals must satisfy POLL_BASELINE > POLL_FAST1 > POLL_FAST2 > 0, got %s > %s > %s",
			c.Poll.Baseline, c.Poll.Fast1, c.Poll.Fast2)
	}
	if c.Poll.Fast2 < time.Second {
		return fmt.Errorf("POLL_FAST2 must be at least 1s, got %s", c.Poll.Fast2)
	}
	if c.Queue.BatchSize <= 0 {
		return fmt.Errorf("DRAIN_BATCH_SIZE must be positive, got %d", c.Queue.BatchSize)
	}
	if c.Queue.Capacity < 0 {
		return fmt.Errorf("QUEUE_CAPACITY must not be negative, got %d", c.Queue.Capacity)
	}
	if c.SMS.Enabled() && (c.SMS.APIKey == "" || c.SMS.DeviceID == "" || c.SMS.TemplateID == "") {
		return fmt.Errorf("SMS_GATEWAY_URL is set but SMS_API_KEY, SMS_DEVICE_ID or SMS_TEMPLATE_ID is missing")
	}
	return nil
}

func required(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("%s is not set", key)
	}
	return v, nil
}

func requiredInt64(key string) (int64, error) {
	v, err := required(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func stringOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationOr(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func intOr(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func floatOr(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

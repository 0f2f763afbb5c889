package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("DATABASE_URL", "postgres://localhost/housemanship")
	t.Setenv("OPERATOR_TELEGRAM_ID", "42")
	t.Setenv("BROADCAST_CHAT_ID", "-1001234")
	t.Setenv("PORTAL_VACANCIES_URL", "https://portal.example/api/vacancies")
	t.Setenv("PORTAL_LOGIN_URL", "https://portal.example/api/login")
	t.Setenv("PORTAL_OTP_URL", "https://portal.example/api/otp")
	t.Setenv("PORTAL_EMAIL", "doctor@example.com")
	t.Setenv("PORTAL_PASSWORD", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.OperatorTelegram)
	assert.Equal(t, int64(-1001234), cfg.BroadcastChatID)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "4000", cfg.Port)
	assert.Equal(t, defaultLoginPageURL, cfg.Portal.LoginPageURL)
	assert.Equal(t, 20*time.Second, cfg.Portal.HTTPTimeout)

	assert.Equal(t, PollConfig{
		Baseline:           60 * time.Second,
		Fast1:              30 * time.Second,
		Fast2:              15 * time.Second,
		QuietPeriod:        24 * time.Hour,
		QuietCheckInterval: time.Minute,
	}, cfg.Poll)
	assert.Equal(t, QueueConfig{
		DrainInterval: 3 * time.Second,
		BatchSize:     10,
		BatchPause:    time.Second,
		WarnThreshold: 500,
		Capacity:      5000,
	}, cfg.Queue)
	assert.Equal(t, TokenConfig{
		OTPTimeout:   5 * time.Minute,
		SafetyMargin: time.Hour,
		FallbackTTL:  12 * time.Hour,
	}, cfg.Token)
	assert.False(t, cfg.SMS.Enabled())
	assert.Equal(t, 5.0, cfg.SMS.RatePerSecond)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("POLL_BASELINE", "2m")
	t.Setenv("POLL_FAST1", "40s")
	t.Setenv("POLL_FAST2", "10s")
	t.Setenv("DRAIN_BATCH_SIZE", "25")
	t.Setenv("SMS_GATEWAY_URL", "https://sms.example/send")
	t.Setenv("SMS_API_KEY", "k")
	t.Setenv("SMS_DEVICE_ID", "d")
	t.Setenv("SMS_TEMPLATE_ID", "t")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2*time.Minute, cfg.Poll.Baseline)
	assert.Equal(t, 40*time.Second, cfg.Poll.Fast1)
	assert.Equal(t, 10*time.Second, cfg.Poll.Fast2)
	assert.Equal(t, 25, cfg.Queue.BatchSize)
	assert.True(t, cfg.SMS.Enabled())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"missing token", map[string]string{"TELEGRAM_TOKEN": ""}, "TELEGRAM_TOKEN is not set"},
		{"missing portal email", map[string]string{"PORTAL_EMAIL": ""}, "PORTAL_EMAIL is not set"},
		{"bad operator id", map[string]string{"OPERATOR_TELEGRAM_ID": "abc"}, "invalid OPERATOR_TELEGRAM_ID"},
		{"bad duration", map[string]string{"OTP_TIMEOUT": "five minutes"}, "invalid OTP_TIMEOUT"},
		{"negative duration", map[string]string{"QUIET_PERIOD": "-1h"}, "invalid QUIET_PERIOD"},
		{"intervals not decreasing", map[string]string{"POLL_FAST1": "90s"}, "POLL_BASELINE > POLL_FAST1 > POLL_FAST2"},
		{"fast2 below a second", map[string]string{"POLL_FAST2": "500ms"}, "POLL_FAST2 must be at least 1s"},
		{"bad batch size", map[string]string{"DRAIN_BATCH_SIZE": "0"}, "DRAIN_BATCH_SIZE must be positive"},
		{"incomplete sms", map[string]string{"SMS_GATEWAY_URL": "https://sms.example"}, "SMS_API_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()

			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

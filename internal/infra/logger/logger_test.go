package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"housemanship_bot/internal/infra/config"
)

func TestInit(t *testing.T) {
	tests := []struct {
		name          string
		cfg           config.AppConfig
		wantLevel     logrus.Level
		wantFormatter logrus.Formatter
	}{
		{"production uses json", config.AppConfig{LogLevel: "warn", Environment: "production"}, logrus.WarnLevel, &logrus.JSONFormatter{}},
		{"staging uses json", config.AppConfig{LogLevel: "debug", Environment: "Staging"}, logrus.DebugLevel, &logrus.JSONFormatter{}},
		{"development uses text", config.AppConfig{LogLevel: "info", Environment: "development"}, logrus.InfoLevel, &logrus.TextFormatter{}},
		{"bad level falls back to info", config.AppConfig{LogLevel: "loud", Environment: "development"}, logrus.InfoLevel, &logrus.TextFormatter{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Init(&tt.cfg)
			assert.Equal(t, tt.wantLevel, Log.GetLevel())
			assert.IsType(t, tt.wantFormatter, Log.Formatter)
		})
	}
}

func TestComponent(t *testing.T) {
	e := Component("housemanship-bot")
	assert.Equal(t, "housemanship-bot", e.Data["service"])
}

package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Config holds the templated SMS gateway settings.
type Config struct {
	URL        string
	APIKey     string
	DeviceID   string
	TemplateID string
	Timeout    time.Duration

	RatePerSecond float64
	Burst         int

	// BreakerThreshold is the number of consecutive failures that opens the
	// circuit; BreakerCooldown is how long it stays open.
	BreakerThreshold uint32
	BreakerCooldown  time.Duration
}

// ClientError is a 4xx answer from the gateway. It does not count against
// the circuit breaker.
type ClientError struct {
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("sms gateway rejected request (%d): %s", e.StatusCode, e.Message)
}

// ServerError is a 5xx answer from the gateway.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("sms gateway error (%d): %s", e.StatusCode, e.Message)
}

// Gateway sends the vacancy alert template through the SMS provider.
type Gateway struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Entry
}

func NewGateway(cfg Config, logger *logrus.Entry) *Gateway {
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = time.Minute
	}

	log := logger.WithField("component", "sms_gateway")
	settings := gobreaker.Settings{
		Name:    "sms-gateway",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerThreshold
		},
		IsSuccessful: func(err error) bool {
			var clientErr *ClientError
			return err == nil || errors.As(err, &clientErr)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"circuit": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}

	return &Gateway{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		breaker:    gobreaker.NewCircuitBreaker(settings),
		logger:     log,
	}
}

type templatePayload struct {
	PhoneNumber string       `json:"phone_number"`
	DeviceID    string       `json:"device_id"`
	TemplateID  string       `json:"template_id"`
	APIKey      string       `json:"api_key"`
	Data        templateData `json:"data"`
}

type templateData struct {
	HospitalList string `json:"hospitallist"`
}

// SendTemplate waits for a rate-limit slot and sends one SMS. Nothing is
// retried; an open circuit fails fast with gobreaker.ErrOpenState.
func (g *Gateway) SendTemplate(ctx context.Context, phoneNumber string, hospitals []string) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("sms rate limit: %w", err)
	}

	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, g.send(ctx, phoneNumber, hospitals)
	})
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	return nil
}

// State reports the circuit breaker state.
func (g *Gateway) State() gobreaker.State {
	return g.breaker.State()
}

func (g *Gateway) send(ctx context.Context, phoneNumber string, hospitals []string) error {
	payload := templatePayload{
		PhoneNumber: phoneNumber,
		DeviceID:    g.cfg.DeviceID,
		TemplateID:  g.cfg.TemplateID,
		APIKey:      g.cfg.APIKey,
		Data:        templateData{HospitalList: strings.Join(hospitals, ", ")},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute sms request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &ClientError{StatusCode: resp.StatusCode, Message: string(respBody)}
	default:
		return &ServerError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
}

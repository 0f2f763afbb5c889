package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"housemanship_bot/internal/domain/auth"
	"housemanship_bot/internal/domain/vacancy"
)

const statusOTPRequired = "OTP_REQUIRED"

// Config holds the portal endpoints.
type Config struct {
	VacanciesURL string
	LoginURL     string
	OTPURL       string
	Timeout      time.Duration
}

// StatusError is returned for any non-2xx portal response.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("portal %s returned %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Unwrap lets callers match a 401 with errors.Is(err, auth.ErrUnauthorized).
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return auth.ErrUnauthorized
	}
	return nil
}

// Client talks to the housemanship portal JSON API.
// It implements both vacancy.Source and auth.Portal.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *logrus.Entry
}

func NewClient(cfg Config, logger *logrus.Entry) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.WithField("component", "portal"),
	}
}

type vacanciesRequest struct {
	JWT string `json:"jwt"`
	TID int    `json:"tid"`
}

type vacancyItem struct {
	CenterName  string `json:"centerName"`
	OfficerLeft any    `json:"officer_left"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Status  string `json:"status"`
	Email   string `json:"email"`
	Message string `json:"message"`
	JWT     string `json:"jwt"`
}

type otpRequest struct {
	Email   string `json:"email"`
	OTPCode string `json:"otp_code"`
}

type otpResponse struct {
	JWT string `json:"jwt"`
}

// FetchVacancies returns the open centers in the order the portal lists them.
func (c *Client) FetchVacancies(ctx context.Context, token string) (vacancy.Snapshot, error) {
	var items []vacancyItem
	if err := c.post(ctx, "vacancies", c.cfg.VacanciesURL, token, vacanciesRequest{JWT: token, TID: 1}, &items); err != nil {
		return nil, err
	}

	snapshot := make(vacancy.Snapshot, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		name := strings.TrimSpace(it.CenterName)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			c.logger.WithField("center", name).Warn("Duplicate center in portal listing, keeping the first")
			continue
		}
		seen[name] = struct{}{}
		snapshot = append(snapshot, vacancy.Entry{CenterName: name, SlotsLeft: c.slotCount(name, it.OfficerLeft)})
	}
	return snapshot, nil
}

// Login posts the credentials. The portal either answers with a token or
// asks for an OTP.
func (c *Client) Login(ctx context.Context, email, password string) (*auth.LoginResult, error) {
	var resp loginResponse
	if err := c.post(ctx, "login", c.cfg.LoginURL, "", loginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	if strings.EqualFold(resp.Status, statusOTPRequired) {
		return &auth.LoginResult{OTPRequired: true, Email: resp.Email, Message: resp.Message}, nil
	}
	if resp.JWT == "" {
		return nil, fmt.Errorf("login response has neither token nor otp challenge (status %q)", resp.Status)
	}
	return &auth.LoginResult{JWT: resp.JWT}, nil
}

// VerifyOTP exchanges an OTP code for a token.
func (c *Client) VerifyOTP(ctx context.Context, email, code string) (string, error) {
	var resp otpResponse
	if err := c.post(ctx, "otp", c.cfg.OTPURL, "", otpRequest{Email: email, OTPCode: code}, &resp); err != nil {
		return "", err
	}
	if resp.JWT == "" {
		return "", errors.New("otp response carried no token")
	}
	return resp.JWT, nil
}

func (c *Client) post(ctx context.Context, endpoint, url, bearer string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: truncate(string(respBody), 200)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// slotCount accepts the count as a JSON string or number.
func (c *Client) slotCount(center string, raw any) int {
	switch v := raw.(type) {
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err == nil {
			return n
		}
	}
	c.logger.WithFields(logrus.Fields{"center": center, "officer_left": raw}).Warn("Unreadable slot count, using 0")
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

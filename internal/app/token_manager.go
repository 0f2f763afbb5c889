package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"housemanship_bot/internal/domain/auth"
	domainTelegram "housemanship_bot/internal/domain/telegram"
)

// TokenManagerConfig carries the portal credentials and token timings.
type TokenManagerConfig struct {
	Email          string
	Password       string
	SafetyMargin   time.Duration
	FallbackTTL    time.Duration
	OTPTimeout     time.Duration
	OperatorChatID int64
}

// TokenManager keeps a usable portal token, logging in again when it nears
// expiry. When the portal asks for an OTP that cannot be read from the
// challenge itself, the operator is asked for it over Telegram.
type TokenManager struct {
	portal    auth.Portal
	messenger domainTelegram.Messenger
	cfg       TokenManagerConfig
	logger    *logrus.Entry
	now       func() time.Time

	mu    sync.RWMutex
	token auth.Token

	loginMu sync.Mutex
	otp     *OTPSession
}

func NewTokenManager(portal auth.Portal, messenger domainTelegram.Messenger, cfg TokenManagerConfig, logger *logrus.Entry) *TokenManager {
	return &TokenManager{
		portal:    portal,
		messenger: messenger,
		cfg:       cfg,
		logger:    logger.WithField("component", "token_manager"),
		now:       time.Now,
		otp:       NewOTPSession(),
	}
}

// GetToken returns the cached token while it is usable and runs the login
// sequence otherwise. Only one login runs at a time; a concurrent caller gets
// ErrLoginInProgress right away.
func (m *TokenManager) GetToken(ctx context.Context) (auth.Token, error) {
	if tok, ok := m.cached(); ok {
		return tok, nil
	}

	if !m.loginMu.TryLock() {
		return auth.Token{}, ErrLoginInProgress
	}
	defer m.loginMu.Unlock()

	// Another caller may have refreshed the token while we waited for the lock.
	if tok, ok := m.cached(); ok {
		return tok, nil
	}

	m.logger.Info("Portal token missing or near expiry, logging in")
	tok, outcome, err := m.login(ctx)
	if err != nil {
		authLoginsTotal.WithLabelValues("failure").Inc()
		m.logger.WithError(err).Error("Portal login failed")
		if !errors.Is(err, ErrOTPTimeout) {
			m.notifyOperator(fmt.Sprintf("⚠️ Portal login failed: %v", err))
		}
		return auth.Token{}, err
	}
	authLoginsTotal.WithLabelValues(outcome).Inc()

	m.mu.Lock()
	m.token = tok
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"outcome":    outcome,
		"expires_at": tok.ExpiresAt.Format(time.RFC3339),
	}).Info("Portal token refreshed")
	if !tok.UsableAt(m.now(), m.cfg.SafetyMargin) {
		m.logger.WithFields(logrus.Fields{
			"expires_at":    tok.ExpiresAt.Format(time.RFC3339),
			"safety_margin": m.cfg.SafetyMargin.String(),
		}).Warn("Portal issued a token that expires inside the safety margin, every cycle will log in again")
	}
	return tok, nil
}

// SubmitOTP hands an operator reply to the pending OTP session.
func (m *TokenManager) SubmitOTP(text string) bool {
	accepted := m.otp.Resolve(text)
	if accepted {
		m.logger.Info("OTP received from operator")
	}
	return accepted
}

// AwaitingOTP reports whether a login is blocked on an operator reply.
func (m *TokenManager) AwaitingOTP() bool {
	return m.otp.Pending()
}

// Invalidate drops the cached token so the next GetToken logs in again.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = auth.Token{}
	m.logger.Warn("Portal token invalidated")
}

func (m *TokenManager) cached() (auth.Token, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token.UsableAt(m.now(), m.cfg.SafetyMargin) {
		return m.token, true
	}
	return auth.Token{}, false
}

func (m *TokenManager) login(ctx context.Context) (auth.Token, string, error) {
	res, err := m.portal.Login(ctx, m.cfg.Email, m.cfg.Password)
	if err != nil {
		return auth.Token{}, "", fmt.Errorf("%w: login request: %w", auth.ErrAuth, err)
	}

	if !res.OTPRequired {
		if res.JWT == "" {
			return auth.Token{}, "", fmt.Errorf("%w: login response carried no token", auth.ErrAuth)
		}
		return m.newToken(res.JWT), "direct", nil
	}

	outcome := "otp_auto"
	code, ok := ExtractOTP(res.Message)
	if !ok {
		outcome = "otp_operator"
		code, err = m.awaitOperatorOTP(ctx, res.Message)
		if err != nil {
			return auth.Token{}, "", err
		}
	}

	email := res.Email
	if email == "" {
		email = m.cfg.Email
	}
	value, err := m.portal.VerifyOTP(ctx, email, code)
	if err != nil {
		return auth.Token{}, "", fmt.Errorf("%w: otp verification: %w", auth.ErrAuth, err)
	}
	if value == "" {
		return auth.Token{}, "", fmt.Errorf("%w: otp verification returned no token", auth.ErrAuth)
	}
	return m.newToken(value), outcome, nil
}

func (m *TokenManager) awaitOperatorOTP(ctx context.Context, challenge string) (string, error) {
	reply, err := m.otp.Begin(m.now().Add(m.cfg.OTPTimeout))
	if err != nil {
		return "", err
	}
	defer m.otp.Finish()

	m.notifyOperator(fmt.Sprintf(
		"🔐 The portal requires an OTP.\n\n%s\n\nReply with the 6-digit code within %s.",
		strings.TrimSpace(challenge), m.cfg.OTPTimeout))

	timer := time.NewTimer(m.cfg.OTPTimeout)
	defer timer.Stop()

	select {
	case code := <-reply:
		return code, nil
	case <-timer.C:
		if !m.otp.Expire() {
			return <-reply, nil
		}
		m.notifyOperator("⌛ OTP was not received in time. Login will be retried on the next polling cycle.")
		return "", ErrOTPTimeout
	case <-ctx.Done():
		if !m.otp.Expire() {
			return <-reply, nil
		}
		return "", fmt.Errorf("%w: waiting for otp: %w", auth.ErrAuth, ctx.Err())
	}
}

func (m *TokenManager) newToken(value string) auth.Token {
	expiresAt, ok := tokenExpiry(value)
	if !ok {
		expiresAt = m.now().Add(m.cfg.FallbackTTL)
		m.logger.Warnf("Token carries no readable exp claim, assuming %s lifetime", m.cfg.FallbackTTL)
	}
	return auth.Token{Value: value, ExpiresAt: expiresAt}
}

// tokenExpiry reads the exp claim without verifying the signature.
func tokenExpiry(value string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(value, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func (m *TokenManager) notifyOperator(text string) {
	if err := m.messenger.SendMessage(m.cfg.OperatorChatID, text, nil); err != nil {
		m.logger.WithError(err).Warn("Failed to notify operator")
	}
}

// internal/domain/auth/token.go
package auth

import (
	"context"
	"errors"
	"time"
)

// ErrAuth is the root of every login or OTP failure.
var ErrAuth = errors.New("portal authentication failed")

// ErrUnauthorized is returned by portal calls rejected with 401.
var ErrUnauthorized = errors.New("portal rejected token")

// Token is the portal JWT together with its expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// UsableAt reports whether the token may still be sent to the portal at now,
// keeping margin in reserve before the real expiry.
func (t Token) UsableAt(now time.Time, margin time.Duration) bool {
	if t.Value == "" {
		return false
	}
	return now.Before(t.ExpiresAt.Add(-margin))
}

// LoginResult is the portal's answer to a credential login. Either JWT is set
// or OTPRequired is true and Message carries the challenge text.
type LoginResult struct {
	JWT         string
	OTPRequired bool
	Email       string
	Message     string
}

// Portal is the authentication side of the housemanship portal.
type Portal interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	VerifyOTP(ctx context.Context, email, code string) (string, error)
}

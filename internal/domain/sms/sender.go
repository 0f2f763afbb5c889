package sms

import (
	"context"
	"errors"
)

// ErrDisabled is returned by senders that have no gateway configured.
var ErrDisabled = errors.New("sms gateway not configured")

// Sender delivers the vacancy alert template to a phone number.
type Sender interface {
	SendTemplate(ctx context.Context, phoneNumber string, hospitals []string) error
}

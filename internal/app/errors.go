package app

import (
	"errors"
	"fmt"

	"housemanship_bot/internal/domain/auth"
)

// ErrFetch marks a polling cycle that produced no usable snapshot.
var ErrFetch = errors.New("vacancy fetch failed")

// ErrEmptySnapshot is returned when the portal answers with an empty list.
// It is treated as a fetch failure, never as "every center removed".
var ErrEmptySnapshot = fmt.Errorf("%w: empty vacancy list", ErrFetch)

// ErrSubscriberQuery marks a failed subscriber store lookup during enqueue.
var ErrSubscriberQuery = errors.New("subscriber query failed")

// ErrDispatch marks a single failed delivery.
var ErrDispatch = errors.New("notification delivery failed")

// Authentication failures. All of them satisfy errors.Is(err, auth.ErrAuth).
var (
	ErrOTPTimeout        = fmt.Errorf("%w: otp not received in time", auth.ErrAuth)
	ErrOTPSessionPending = fmt.Errorf("%w: another otp session is pending", auth.ErrAuth)
	ErrLoginInProgress   = fmt.Errorf("%w: login already in progress", auth.ErrAuth)
)

package app

import (
	"strings"
	"sync"
	"time"
)

type otpState int

const (
	otpIdle otpState = iota
	otpAwaiting
	otpResolved
	otpTimedOut
)

// OTPSession correlates one outstanding OTP request with the operator's reply.
// At most one session is awaiting at any time; Begin rejects a second one
// instead of replacing it.
type OTPSession struct {
	mu       sync.Mutex
	state    otpState
	deadline time.Time
	reply    chan string
}

func NewOTPSession() *OTPSession {
	return &OTPSession{}
}

// Begin moves idle -> awaiting and returns the channel the code will arrive on.
func (s *OTPSession) Begin(deadline time.Time) (<-chan string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == otpAwaiting {
		return nil, ErrOTPSessionPending
	}
	s.state = otpAwaiting
	s.deadline = deadline
	s.reply = make(chan string, 1)
	return s.reply, nil
}

// Resolve delivers code to the awaiting login. It returns false when no
// session is awaiting or code is not a bare 6-digit string.
func (s *OTPSession) Resolve(code string) bool {
	code = strings.TrimSpace(code)
	if !IsOTPReply(code) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != otpAwaiting {
		return false
	}
	s.state = otpResolved
	s.reply <- code
	return true
}

// Expire moves awaiting -> timedOut. It returns false if the session was
// resolved first, in which case the code is already buffered on the reply channel.
func (s *OTPSession) Expire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != otpAwaiting {
		return false
	}
	s.state = otpTimedOut
	return true
}

// Finish returns the session to idle after the login sequence consumed it.
func (s *OTPSession) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = otpIdle
	s.deadline = time.Time{}
	s.reply = nil
}

// Pending reports whether a reply is currently awaited.
func (s *OTPSession) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == otpAwaiting
}

// Deadline returns when the awaiting session times out (zero when idle).
func (s *OTPSession) Deadline() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deadline
}

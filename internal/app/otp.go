package app

import (
	"regexp"
	"strings"
)

var (
	// "... code is 123.456789" style: six digits right after a dot, with no
	// further digits before the end of the message.
	otpTrailingPattern = regexp.MustCompile(`\.(\d{6})\D*$`)
	otpAnyPattern      = regexp.MustCompile(`\d{6}`)
	otpReplyPattern    = regexp.MustCompile(`^\d{6}$`)
)

// ExtractOTP pulls a 6-digit code out of a portal challenge message.
// The dot-delimited form wins over a bare run elsewhere in the text.
func ExtractOTP(message string) (string, bool) {
	if m := otpTrailingPattern.FindStringSubmatch(message); m != nil {
		return m[1], true
	}
	if m := otpAnyPattern.FindString(message); m != "" {
		return m, true
	}
	return "", false
}

// IsOTPReply reports whether an operator message is a bare 6-digit code.
// Slash commands never qualify.
func IsOTPReply(text string) bool {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "/") {
		return false
	}
	return otpReplyPattern.MatchString(text)
}

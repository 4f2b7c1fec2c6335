package joysky

import (
	"errors"
	"strings"
)

// MaskPhone obfuscates an 11-digit phone number for display: first three and
// last four digits survive, the middle four become asterisks.
//
//	13800138000 -> 138****8000
func MaskPhone(phone string) (string, error) {
	if len(phone) != 11 {
		return "", errors.New("phone must be 11 digits")
	}
	return phone[:3] + "****" + phone[7:], nil
}

// MaskEmail obfuscates an email address for display: the first two local
// characters survive, the rest of the local part becomes three asterisks,
// the domain is untouched.
//
//	test@example.com -> te***@example.com
func MaskEmail(email string) (string, error) {
	at := strings.Index(email, "@")
	if at < 0 {
		return "", errors.New("email missing @")
	}
	if at <= 2 {
		return "", errors.New("email local part too short to mask")
	}
	return email[:2] + "***" + email[at:], nil
}

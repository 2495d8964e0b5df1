package otp

import (
	"fmt"
	"regexp"
	"strings"
)

// Delivery methods accepted by the recovery endpoints.
const (
	MethodEmail  = "email"
	MethodMobile = "mobile"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	// Philippine mobile numbers in local form: 09 plus nine digits.
	localMobilePattern = regexp.MustCompile(`^09\d{9}$`)
)

// NormalizeContact canonicalizes a recovery contact for the given method.
// Emails lowercase; mobile numbers collapse to the local 09xxxxxxxxx form,
// accepting +63 and 63 international prefixes.
func NormalizeContact(method, contact string) (string, error) {
	value := strings.TrimSpace(contact)
	if value == "" {
		return "", fmt.Errorf("contact is required")
	}

	switch method {
	case MethodEmail:
		value = strings.ToLower(value)
		if !emailPattern.MatchString(value) {
			return "", fmt.Errorf("invalid email address")
		}
		return value, nil

	case MethodMobile:
		value = strings.ReplaceAll(value, " ", "")
		value = strings.ReplaceAll(value, "-", "")
		if rest, ok := strings.CutPrefix(value, "+63"); ok {
			value = "0" + rest
		} else if rest, ok := strings.CutPrefix(value, "63"); ok && len(rest) == 10 {
			value = "0" + rest
		}
		if !localMobilePattern.MatchString(value) {
			return "", fmt.Errorf("invalid mobile number")
		}
		return value, nil

	default:
		return "", fmt.Errorf("unsupported delivery method %q", method)
	}
}

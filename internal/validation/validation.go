// Package validation contains input validation helpers.
package validation

import (
	"regexp"
	"strings"
)

// walletNumberRe matches Pakistani mobile numbers as the wallet providers
// accept them: 11 digits, starting 03.
var walletNumberRe = regexp.MustCompile(`^03\d{9}$`)

// IsValidWalletNumber reports whether number is an acceptable mobile-wallet
// account number.
func IsValidWalletNumber(number string) bool {
	return walletNumberRe.MatchString(number)
}

// orderNumberRe matches externally visible order numbers such as MMS-00042.
var orderNumberRe = regexp.MustCompile(`^MMS-\d{5,}$`)

// NormalizeOrderNumber trims and uppercases a customer-supplied order number.
func NormalizeOrderNumber(number string) string {
	return strings.ToUpper(strings.TrimSpace(number))
}

// IsValidOrderNumber reports whether number (already normalized) has the
// shape of an order number.
func IsValidOrderNumber(number string) bool {
	return orderNumberRe.MatchString(number)
}

// emailRe is a deliberately loose shape check; real verification happens
// out of band.
var emailRe = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidEmail reports whether email looks like an email address.
func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

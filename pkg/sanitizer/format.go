package sanitizer

import (
	"strings"
)

// NormalizeEmail lowercases and trims the address and collapses repeated dots
// in the local part. Values without exactly one @ are only trimmed and
// lowercased.
func NormalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))

	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return email
	}

	local = strings.Trim(dotRegex.ReplaceAllString(local, "."), ".")
	return local + "@" + domain
}

// NormalizePhone strips formatting such as spaces, dashes and parentheses.
// A leading plus sign is kept so E.164 numbers stay intact.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	digits := nonDigitRegex.ReplaceAllString(phone, "")
	if strings.HasPrefix(phone, "+") && digits != "" {
		return "+" + digits
	}
	return digits
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return email
	}
	if len(local) == 1 {
		return "*@" + domain
	}
	return local[:1] + strings.Repeat("*", len(local)-1) + "@" + domain
}

// MaskPhone shows only the last four digits.
func MaskPhone(phone string) string {
	digits := nonDigitRegex.ReplaceAllString(phone, "")
	if len(digits) < 4 {
		return strings.Repeat("*", len(digits))
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}

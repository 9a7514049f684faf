package validator

import (
	"fmt"
	"net/mail"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

// E.164 with an optional leading plus.
var phoneRegex = regexp.MustCompile(`^\+?[1-9]\d{6,14}$`)

func rule(field, msg string, check func() bool) Rule {
	return Rule{Check: check, Error: ValidationError{Field: field, Message: msg}}
}

// Required fails for empty or whitespace-only values.
func Required(field, value string) Rule {
	return rule(field, "field is required", func() bool {
		return strings.TrimSpace(value) != ""
	})
}

// MaxLen limits the value to max characters.
func MaxLen(field, value string, max int) Rule {
	return rule(field, fmt.Sprintf("must be at most %d characters long", max), func() bool {
		return utf8.RuneCountInString(value) <= max
	})
}

func OneOfString(field, value string, options []string) Rule {
	return rule(field, "must be one of: "+strings.Join(options, ", "), func() bool {
		return slices.Contains(options, value)
	})
}

// ValidEmail accepts a bare address with a dotted domain. Display-name
// forms such as "Ann <ann@example.com>" are rejected.
func ValidEmail(field, value string) Rule {
	return rule(field, "must be a valid email address", func() bool {
		addr, err := mail.ParseAddress(value)
		if err != nil || addr.Address != value {
			return false
		}
		local, domain, ok := strings.Cut(value, "@")
		if !ok || local == "" {
			return false
		}
		labels := strings.Split(domain, ".")
		if len(labels) < 2 {
			return false
		}
		for _, l := range labels {
			if l == "" {
				return false
			}
		}
		return true
	})
}

// ValidPhone accepts international numbers; spaces and dashes are ignored.
func ValidPhone(field, value string) Rule {
	return rule(field, "must be a valid phone number in international format", func() bool {
		cleaned := strings.NewReplacer(" ", "", "-", "").Replace(value)
		return phoneRegex.MatchString(cleaned)
	})
}

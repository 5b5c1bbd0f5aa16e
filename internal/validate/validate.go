// Package validate holds the field rules shared by registration, profile
// editing and administration.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// ValidationError reports a single rejected field. The console re-prompts on
// it; the HTTP layer maps it to 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func Email(s string) bool {
	return emailPattern.MatchString(s)
}

// EmailInDomains reports whether s is a valid address ending in @ one of the
// domains. An empty domain list accepts any valid address.
func EmailInDomains(s string, domains []string) bool {
	if !Email(s) {
		return false
	}
	if len(domains) == 0 {
		return true
	}
	lower := strings.ToLower(s)
	for _, d := range domains {
		if strings.HasSuffix(lower, "@"+strings.ToLower(strings.TrimPrefix(d, "@"))) {
			return true
		}
	}
	return false
}

// Password needs at least 8 characters, an upper case letter and a digit.
func Password(s string) bool {
	if len(s) < 8 {
		return false
	}
	var upper, digit bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && digit
}

// DOBLayout is the dd/mm/yyyy form dates of birth are entered and stored in.
const DOBLayout = "02/01/2006"

// DOB accepts dd/mm/yyyy dates after 1900 that are not in the future.
func DOB(s string, now time.Time) bool {
	d, err := time.ParseInLocation(DOBLayout, s, now.Location())
	if err != nil {
		return false
	}
	return d.Year() > 1900 && !d.After(now)
}

// Mobile accepts 10 digit numbers starting with one of the prefixes.
func Mobile(s string, prefixes ...string) bool {
	if len(s) != 10 || !digitsOnly(s) {
		return false
	}
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// Name accepts a non-empty run of letters.
func Name(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func Date(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func Clock(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}

func NotBlank(s string) bool {
	return strings.TrimSpace(s) != ""
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

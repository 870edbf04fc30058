package validation

import (
	"errors"
	"strings"
	"unicode"
)

const MinPasswordLength = 8

// ValidatePassword проверяет сложность пароля. attrs - email, имя и т.п.,
// с которыми пароль не должен совпадать.
func ValidatePassword(password string, attrs ...string) error {
	if len([]rune(password)) < MinPasswordLength {
		return errors.New("This password is too short. It must contain at least 8 characters.")
	}

	var letters, digits int
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letters++
		case unicode.IsDigit(r):
			digits++
		}
	}
	if letters == 0 {
		return errors.New("This password is entirely numeric.")
	}
	if digits == 0 {
		return errors.New("This password must contain at least one digit.")
	}

	lower := strings.ToLower(password)
	for _, attr := range attrs {
		attr = strings.ToLower(strings.TrimSpace(attr))
		if i := strings.IndexByte(attr, '@'); i > 0 {
			attr = attr[:i]
		}
		if len(attr) >= 4 && strings.Contains(lower, attr) {
			return errors.New("The password is too similar to the personal information.")
		}
	}
	return nil
}

package services

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"

	"github.com/dmitrijs2005/chatterbox/internal/common"
)

const passwordSpecials = "#?!@$%^&*-"

// validatePassword requires at least 8 characters with an upper case letter,
// a lower case letter, a digit and one of #?!@$%^&*-.
func validatePassword(p string) error {
	var upper, lower, digit, special bool
	for _, r := range p {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}

	if len([]rune(p)) < 8 || !upper || !lower || !digit || !special {
		return fmt.Errorf("password must contain at least 8 characters with one uppercase letter, one lowercase letter, one numeric digit, one special character: %w", common.ErrorValidation)
	}
	return nil
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("invalid email %q: %w", email, common.ErrorValidation)
	}
	return nil
}

func validatePurpose(purpose string) error {
	switch purpose {
	case common.OTPPurposeIdentity, common.OTPPurposePasswordReset:
		return nil
	}
	return fmt.Errorf("unknown otp type %q: %w", purpose, common.ErrorValidation)
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required: %w", field, common.ErrorValidation)
	}
	return nil
}

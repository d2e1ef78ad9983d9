package utils

import (
	"unicode"

	"github.com/atrium-collab/atrium/internal/chaterr"
)

// ValidatePassword enforces the minimum password shape: at least 8
// characters containing a letter, a digit and a symbol.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return chaterr.New(chaterr.InvalidArgument, "password must be at least 8 characters long")
	}
	var letter, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	if !letter || !digit || !symbol {
		return chaterr.New(chaterr.InvalidArgument, "password must contain a letter, a digit and a symbol")
	}
	return nil
}

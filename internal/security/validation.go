// Package security validates user-supplied identifiers and masks secrets
// before they are displayed or logged.
package security

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// ErrInvalidInput is matched by every ValidationError.
var ErrInvalidInput = errors.New("invalid input")

// Validation patterns
var (
	// Symbol: uppercase letters and digits, with class separators such as BRK.B.
	symbolPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.&-]{0,19}$`)

	// Portfolio IDs end up in file-backed stores and message keys.
	portfolioIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)
)

// ValidationError represents a rejected input.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// ValidateSymbol normalizes a ticker symbol and checks its format.
func ValidateSymbol(symbol string) (string, error) {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	if symbol == "" {
		return "", &ValidationError{Field: "symbol", Value: symbol, Message: "symbol cannot be empty"}
	}
	if len(symbol) > 20 {
		return "", &ValidationError{Field: "symbol", Value: symbol, Message: "symbol too long (max 20 characters)"}
	}
	if !symbolPattern.MatchString(symbol) {
		return "", &ValidationError{Field: "symbol", Value: symbol, Message: "invalid symbol format"}
	}
	return symbol, nil
}

// ValidatePortfolioID checks a portfolio identifier.
func ValidatePortfolioID(id string) error {
	if strings.TrimSpace(id) == "" {
		return &ValidationError{Field: "portfolio id", Value: id, Message: "portfolio id cannot be empty"}
	}
	if len(id) > 64 {
		return &ValidationError{Field: "portfolio id", Value: id, Message: "portfolio id too long (max 64 characters)"}
	}
	if !portfolioIDPattern.MatchString(id) {
		return &ValidationError{Field: "portfolio id", Value: id, Message: "use letters, digits, '.', '_' or '-'"}
	}
	return nil
}

// SanitizeSymbol uppercases a symbol and drops characters that can never
// appear in one.
func SanitizeSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	var result strings.Builder
	for _, r := range symbol {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '&' || r == '-' || r == '.' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

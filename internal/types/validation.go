package types

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// KeyValidationConfig contains configuration for cache key validation.
type KeyValidationConfig struct {
	ReservedPatterns  []string `json:"reservedPatterns" yaml:"reservedPatterns"`
	MaxKeyLength      int      `json:"maxKeyLength" yaml:"maxKeyLength"`
	AllowEmpty        bool     `json:"allowEmpty" yaml:"allowEmpty"`
	AllowControlChars bool     `json:"allowControlChars" yaml:"allowControlChars"`
	AllowWhitespace   bool     `json:"allowWhitespace" yaml:"allowWhitespace"`
}

// DefaultKeyValidationConfig returns a KeyValidationConfig with default values.
func DefaultKeyValidationConfig() KeyValidationConfig {
	return KeyValidationConfig{
		MaxKeyLength:    1024,
		AllowWhitespace: true,
	}
}

// KeyValidator checks cache keys and invalidation patterns before they reach
// any level.
type KeyValidator struct {
	config KeyValidationConfig
}

func NewKeyValidator(config KeyValidationConfig) *KeyValidator {
	return &KeyValidator{config: config}
}

// Validate checks a key against the configured rules.
func (v *KeyValidator) Validate(key string) error {
	if key == "" {
		if !v.config.AllowEmpty {
			return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
		}
		return nil
	}

	if err := v.checkRunes(key, "key"); err != nil {
		return err
	}

	for _, reserved := range v.config.ReservedPatterns {
		if strings.Contains(key, reserved) {
			return fmt.Errorf("%w: key contains reserved pattern %q", ErrInvalidKey, reserved)
		}
	}

	return nil
}

// ValidatePattern checks a glob pattern. Reserved substrings are allowed
// since a pattern may legitimately span them.
func (v *KeyValidator) ValidatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("%w: pattern cannot be empty", ErrInvalidKey)
	}
	return v.checkRunes(pattern, "pattern")
}

func (v *KeyValidator) checkRunes(s, what string) error {
	if v.config.MaxKeyLength > 0 && len(s) > v.config.MaxKeyLength {
		return fmt.Errorf("%w: %s length %d exceeds maximum %d bytes",
			ErrInvalidKey, what, len(s), v.config.MaxKeyLength)
	}

	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: %s contains invalid UTF-8", ErrInvalidKey, what)
	}

	for i, r := range s {
		// ASCII 0-31 and 127
		if !v.config.AllowControlChars && (r < 32 || r == 127) {
			return fmt.Errorf("%w: %s contains control character at position %d", ErrInvalidKey, what, i)
		}

		if !v.config.AllowWhitespace && unicode.IsSpace(r) {
			return fmt.Errorf("%w: %s contains whitespace at position %d", ErrInvalidKey, what, i)
		}
	}

	return nil
}

// DefaultKeyValidator is the default key validator instance.
var DefaultKeyValidator = NewKeyValidator(DefaultKeyValidationConfig())

// ValidateKey validates a key using the default validator.
func ValidateKey(key string) error {
	return DefaultKeyValidator.Validate(key)
}

// IsInvalidKey returns true if the error indicates an invalid key.
func IsInvalidKey(err error) bool {
	return errors.Is(err, ErrInvalidKey)
}

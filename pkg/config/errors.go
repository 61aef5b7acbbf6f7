package config

import (
	"errors"
	"fmt"
)

// MissingKeyError indicates one required environment variable was not set.
// Mirrors the teacher's ValidationError{Component, ID, Field, Err} shape.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("missing required environment variable %q", e.Key)
}

// MissingKeysError collects every MissingKeyError found during validate(),
// matching the teacher's validator.go pattern of reporting all violations
// via errors.Join instead of failing on the first one.
type MissingKeysError struct {
	Keys []string
}

func (e *MissingKeysError) Error() string {
	return fmt.Sprintf("configuration validation failed: %d required key(s) missing: %v", len(e.Keys), e.Keys)
}

func newMissingKeysError(missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	errs := make([]error, len(missing))
	for i, k := range missing {
		errs[i] = &MissingKeyError{Key: k}
	}
	return errors.Join(&MissingKeysError{Keys: missing}, errors.Join(errs...))
}

package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
)

var (
	// ErrInvalidInput marks a request rejected before any write.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks an explicit lookup that matched nothing.
	ErrNotFound = errors.New("not found")
	// ErrPersistence marks a failed database write; the surrounding transaction was rolled back.
	ErrPersistence = errors.New("persistence failure")
)

// InvalidInput builds an ErrInvalidInput with a caller-facing message.
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// NotFound builds an ErrNotFound for the named resource.
func NotFound(resource string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, resource)
}

// Persistence wraps a storage error with ErrPersistence and records a stack trace.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPersistence) || errors.Is(err, ErrInvalidInput) {
		return err
	}
	return pkgerrors.WithStack(fmt.Errorf("%w: %s: %w", ErrPersistence, op, err))
}

const dateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date into a UTC midnight time.
func ParseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, InvalidInput("%s is required", field)
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, InvalidInput("%s must be formatted as YYYY-MM-DD", field)
	}
	return t, nil
}

// FormatDate renders a date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

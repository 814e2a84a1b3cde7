// Package storage provides the data persistence layer for the detection engine.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dhanwatch/dhanwatch/internal/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrInvalidStatus    = errors.New("invalid detection status")
	ErrInvalidDetection = errors.New("invalid detection")
	ErrNotFound         = errors.New("detection not found")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateDetection validates a detection candidate before persistence.
func validateDetection(d *model.DetectedTransaction) error {
	if d == nil {
		return fmt.Errorf("%w: detection", ErrNilParameter)
	}
	if d.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidDetection)
	}
	if d.SourceIdentity == "" {
		return fmt.Errorf("%w: missing source identity", ErrInvalidDetection)
	}
	if d.RawText == "" {
		return fmt.Errorf("%w: missing raw text", ErrInvalidDetection)
	}
	if d.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidDetection)
	}
	if !d.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidDetection)
	}

	switch d.Source {
	case model.SourceNotification, model.SourceSms:
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidDetection, d.Source)
	}

	switch d.Type {
	case model.TypeIncome, model.TypeExpense:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidDetection, d.Type)
	}

	switch d.Status {
	case model.StatusPending, model.StatusProcessed, model.StatusDismissed:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidStatus, d.Status)
	}

	return nil
}

// validateStatus checks a status filter value.
func validateStatus(status model.DetectionStatus) error {
	switch status {
	case model.StatusPending, model.StatusProcessed, model.StatusDismissed:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
}

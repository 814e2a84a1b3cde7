package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/dhanwatch/dhanwatch/internal/common"
	"github.com/dhanwatch/dhanwatch/internal/model"
	"github.com/dhanwatch/dhanwatch/internal/service"
)

// PendingDetections returns the reviewable pending queue, newest first.
func (e *Engine) PendingDetections(ctx context.Context) ([]model.DetectedTransaction, error) {
	return e.storage.ListDetections(ctx, service.DetectionFilter{Status: model.StatusPending})
}

// SuggestAccount proposes a ledger account for a candidate by comparing its
// account fragment against the configured account references.
func (e *Engine) SuggestAccount(ctx context.Context, d *model.DetectedTransaction) (string, error) {
	if d.AccountNumber == "" {
		return "", nil
	}
	return e.ledger.SuggestAccount(ctx, d.AccountNumber)
}

// Confirm writes a pending candidate into the confirmed ledger and marks it
// processed. An empty category is filled from the ledger's history for the
// merchant. The ledger write is retried; the mark happens only after the
// write succeeded, so a crash in between re-surfaces the candidate rather
// than losing it.
func (e *Engine) Confirm(ctx context.Context, id, category, accountRef string) error {
	detection, err := e.storage.GetDetection(ctx, id)
	if err != nil {
		return err
	}
	if detection.Status != model.StatusPending {
		return common.NewUserError(
			fmt.Sprintf("detection is already %s", detection.Status), nil)
	}

	if accountRef == "" && detection.AccountNumber != "" {
		suggested, suggestErr := e.ledger.SuggestAccount(ctx, detection.AccountNumber)
		if suggestErr == nil {
			accountRef = suggested
		}
	}

	if category == "" {
		suggested, suggestErr := e.ledger.SuggestCategory(ctx, detection.Merchant)
		if suggestErr != nil {
			suggested = model.DefaultCategory
		}
		category = suggested
	}

	entry := model.EntryFromDetection(detection, category, accountRef)
	err = common.WithRetry(ctx, func() error {
		if recordErr := e.ledger.Record(ctx, entry); recordErr != nil {
			return &common.RetryableError{Err: recordErr, Retryable: true}
		}
		return nil
	}, service.RetryOptions{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
	})
	if err != nil {
		return fmt.Errorf("ledger write failed: %w", err)
	}

	return e.storage.MarkProcessed(ctx, id)
}

// MarkAsProcessed marks a candidate processed without a ledger write, for
// transactions the user has already recorded manually.
func (e *Engine) MarkAsProcessed(ctx context.Context, id string) error {
	return e.storage.MarkProcessed(ctx, id)
}

// DismissTransaction rejects a pending candidate.
func (e *Engine) DismissTransaction(ctx context.Context, id string) error {
	return e.storage.MarkDismissed(ctx, id)
}

// ClearPending dismisses every currently-pending candidate in one batch and
// returns how many were dismissed.
func (e *Engine) ClearPending(ctx context.Context) (int, error) {
	return e.storage.DismissAllPending(ctx)
}

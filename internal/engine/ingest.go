package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dhanwatch/dhanwatch/internal/common"
	"github.com/dhanwatch/dhanwatch/internal/model"
)

// ingestNotification is the notification stream callback. Failures are
// swallowed and counted; one malformed message must not take down the stream.
func (e *Engine) ingestNotification(ctx context.Context, ev model.RawNotification) {
	text := ev.Body
	if ev.Title != "" {
		text = ev.Title + " " + ev.Body
	}

	candidate, err := e.classifier.Classify(text, ev.AppIdentity, model.SourceNotification, ev.PostedAt)
	if errors.Is(err, common.ErrNoMatch) {
		return
	}
	if err != nil {
		e.dropped.Add(1)
		common.LogError(err, "Notification classification failed", common.Fields{"app": ev.AppIdentity})
		return
	}

	if _, err := e.ingest(ctx, candidate); err != nil {
		e.dropped.Add(1)
		common.LogError(err, "Failed to persist notification detection", common.Fields{
			"detection_id": candidate.ID,
			"app":          ev.AppIdentity,
		})
	}
}

// ingestSms is the SMS stream callback.
func (e *Engine) ingestSms(ctx context.Context, ev model.RawSms) {
	candidate, err := e.classifier.Classify(ev.Body, ev.SenderAddress, model.SourceSms, ev.ReceivedAt)
	if errors.Is(err, common.ErrNoMatch) {
		return
	}
	if err != nil {
		e.dropped.Add(1)
		common.LogError(err, "SMS classification failed", common.Fields{"sender": ev.SenderAddress})
		return
	}

	if _, err := e.ingest(ctx, candidate); err != nil {
		e.dropped.Add(1)
		common.LogError(err, "Failed to persist SMS detection", common.Fields{
			"detection_id": candidate.ID,
			"sender":       ev.SenderAddress,
		})
	}
}

// ingest runs the duplicate check and the enqueue as one atomic step. It
// returns true when the candidate was newly enqueued.
func (e *Engine) ingest(ctx context.Context, candidate *model.DetectedTransaction) (bool, error) {
	e.ingestMu.Lock()
	defer e.ingestMu.Unlock()

	since := candidate.Timestamp.Add(-e.dedup.Lookback())
	recent, err := e.storage.RecentDetections(ctx, since)
	if err != nil {
		return false, fmt.Errorf("failed to load dedup window: %w", err)
	}

	if e.dedup.IsDuplicate(candidate, recent) {
		slog.Debug("Duplicate detection suppressed",
			"detection_id", candidate.ID,
			"reference_id", candidate.ReferenceID,
			"source", candidate.Source)
		return false, nil
	}

	inserted, err := e.storage.Enqueue(ctx, candidate)
	if err != nil {
		return false, err
	}
	if inserted {
		slog.Info("Detected transaction",
			"detection_id", candidate.ID,
			"type", candidate.Type,
			"amount", candidate.Amount,
			"merchant", candidate.Merchant,
			"source", candidate.Source)
	}
	return inserted, nil
}

// ScanRecentSms classifies the SMS inbox over the trailing window and
// returns the newly enqueued candidates. Already-seen messages and
// duplicates are skipped, not re-returned.
func (e *Engine) ScanRecentSms(ctx context.Context, windowHours int) ([]model.DetectedTransaction, error) {
	if e.permissions.SmsAccess(ctx) != model.PermissionGranted {
		return nil, common.NewUserError("SMS access is not granted", common.ErrPermissionDenied)
	}

	window := time.Duration(windowHours) * time.Hour
	if window <= 0 {
		window = 24 * time.Hour
	}
	if window > e.config.ScanWindowMax {
		window = e.config.ScanWindowMax
	}

	now := time.Now()
	messages, err := e.sms.ListSms(ctx, now.Add(-window), now)
	if err != nil {
		return nil, common.NewUserError("scan failed, try again", fmt.Errorf("%w: %v", common.ErrScanFailed, err))
	}

	slog.Info("Scanning SMS inbox", "window_hours", windowHours, "messages", len(messages))

	var added []model.DetectedTransaction
	for i, msg := range messages {
		candidate, err := e.classifier.Classify(msg.Body, msg.SenderAddress, model.SourceSms, msg.ReceivedAt)
		if err == nil {
			inserted, ingestErr := e.ingest(ctx, candidate)
			if ingestErr != nil {
				// Persistence failures abort the scan; silently losing a
				// financial candidate is the one unacceptable outcome.
				return added, ingestErr
			}
			if inserted {
				added = append(added, *candidate)
			}
		}

		if e.ScanProgress != nil {
			e.ScanProgress(i+1, len(messages))
		}
	}

	slog.Info("Scan complete", "new_detections", len(added))
	return added, nil
}

// ToggleNotificationListener records the user's intent for the notification
// stream and starts or stops the live stream to match.
func (e *Engine) ToggleNotificationListener(ctx context.Context, on bool) error {
	settings, err := e.storage.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	settings.NotificationListenerEnabled = on
	if err := e.storage.SaveSettings(ctx, settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	if !on {
		e.stopNotificationStream()
		return nil
	}
	if e.permissions.NotificationAccess(ctx) != model.PermissionGranted {
		return common.NewUserError("notification access is not granted", common.ErrPermissionDenied)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startNotificationStreamLocked()
}

// ToggleSmsReader records the user's intent for the SMS stream and starts or
// stops the live stream to match.
func (e *Engine) ToggleSmsReader(ctx context.Context, on bool) error {
	settings, err := e.storage.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	settings.SmsReaderEnabled = on
	if err := e.storage.SaveSettings(ctx, settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	if !on {
		e.stopSmsStream()
		return nil
	}
	if e.permissions.SmsAccess(ctx) != model.PermissionGranted {
		return common.NewUserError("SMS access is not granted", common.ErrPermissionDenied)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startSmsStreamLocked()
}

// ToggleAutoShowPrompt flips whether a new pending candidate interrupts the
// UI immediately or waits to be pulled.
func (e *Engine) ToggleAutoShowPrompt(ctx context.Context, on bool) error {
	settings, err := e.storage.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	settings.AutoShowPrompt = on
	if err := e.storage.SaveSettings(ctx, settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

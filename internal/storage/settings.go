package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dhanwatch/dhanwatch/internal/model"
)

// GetSettings loads the single settings record, creating it with defaults on
// first run.
func (s *SQLiteStorage) GetSettings(ctx context.Context) (*model.DetectionSettings, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	settings, err := s.readSettings(ctx)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	// First run: persist the defaults so later toggles have a row to update.
	defaults := model.DefaultDetectionSettings()
	if err := s.SaveSettings(ctx, &defaults); err != nil {
		return nil, err
	}
	return &defaults, nil
}

// SaveSettings persists the settings record synchronously.
func (s *SQLiteStorage) SaveSettings(ctx context.Context, settings *model.DetectionSettings) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if settings == nil {
		return fmt.Errorf("%w: settings", ErrNilParameter)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO detection_settings (
			id, notification_permission_granted, sms_permission_granted,
			notification_listener_enabled, sms_reader_enabled,
			auto_show_prompt, updated_at
		) VALUES (1, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			notification_permission_granted = excluded.notification_permission_granted,
			sms_permission_granted = excluded.sms_permission_granted,
			notification_listener_enabled = excluded.notification_listener_enabled,
			sms_reader_enabled = excluded.sms_reader_enabled,
			auto_show_prompt = excluded.auto_show_prompt,
			updated_at = CURRENT_TIMESTAMP
	`,
		settings.NotificationPermissionGranted,
		settings.SmsPermissionGranted,
		settings.NotificationListenerEnabled,
		settings.SmsReaderEnabled,
		settings.AutoShowPrompt,
	)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) readSettings(ctx context.Context) (*model.DetectionSettings, error) {
	var settings model.DetectionSettings
	err := s.db.QueryRowContext(ctx, `
		SELECT notification_permission_granted, sms_permission_granted,
		       notification_listener_enabled, sms_reader_enabled,
		       auto_show_prompt, updated_at
		FROM detection_settings WHERE id = 1
	`).Scan(
		&settings.NotificationPermissionGranted,
		&settings.SmsPermissionGranted,
		&settings.NotificationListenerEnabled,
		&settings.SmsReaderEnabled,
		&settings.AutoShowPrompt,
		&settings.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS detections (
					id TEXT PRIMARY KEY,
					source TEXT NOT NULL,
					source_identity TEXT NOT NULL,
					bank_name TEXT,
					type TEXT NOT NULL,
					amount TEXT NOT NULL,
					merchant TEXT,
					reference_id TEXT,
					account_number TEXT,
					timestamp DATETIME NOT NULL,
					raw_text TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'pending',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_detections_status ON detections(status)`,
				`CREATE INDEX idx_detections_timestamp ON detections(timestamp)`,

				`CREATE TABLE IF NOT EXISTS detection_settings (
					id INTEGER PRIMARY KEY CHECK (id = 1),
					notification_permission_granted INTEGER NOT NULL DEFAULT 0,
					sms_permission_granted INTEGER NOT NULL DEFAULT 0,
					notification_listener_enabled INTEGER NOT NULL DEFAULT 1,
					sms_reader_enabled INTEGER NOT NULL DEFAULT 1,
					auto_show_prompt INTEGER NOT NULL DEFAULT 1,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Index reference ids for duplicate lookups",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_detections_reference ON detections(reference_id) WHERE reference_id != ''`)
			return err
		},
	},
	{
		Version:     3,
		Description: "Track status transition time for retention",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`ALTER TABLE detections ADD COLUMN status_changed_at DATETIME`,
				`UPDATE detections SET status_changed_at = created_at WHERE status_changed_at IS NULL`,
				`CREATE INDEX IF NOT EXISTS idx_detections_status_changed ON detections(status, status_changed_at)`,
			}
			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Get current version
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	// Apply migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		// Update version
		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	// Verify we're at the expected schema version
	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

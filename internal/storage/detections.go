package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dhanwatch/dhanwatch/internal/model"
	"github.com/dhanwatch/dhanwatch/internal/service"
	"github.com/shopspring/decimal"
)

// Enqueue inserts a detection candidate. Ingestion is idempotent: if the id
// already exists in any status the call is a no-op and returns false. The
// row is committed before the call returns.
func (s *SQLiteStorage) Enqueue(ctx context.Context, detection *model.DetectedTransaction) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateDetection(detection); err != nil {
		return false, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO detections (
			id, source, source_identity, bank_name, type, amount,
			merchant, reference_id, account_number, timestamp, raw_text,
			status, status_changed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`,
		detection.ID,
		string(detection.Source),
		detection.SourceIdentity,
		detection.BankName,
		string(detection.Type),
		detection.Amount.String(),
		detection.Merchant,
		detection.ReferenceID,
		detection.AccountNumber,
		detection.Timestamp,
		detection.RawText,
		string(detection.Status),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert detection %s: %w", detection.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return rows > 0, nil
}

// GetDetection retrieves a single detection by id.
func (s *SQLiteStorage) GetDetection(ctx context.Context, id string) (*model.DetectedTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, detectionColumns+` WHERE id = ?`, id)
	detection, err := scanDetection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get detection: %w", err)
	}
	return detection, nil
}

// ListDetections returns detections matching the filter, newest first.
func (s *SQLiteStorage) ListDetections(ctx context.Context, filter service.DetectionFilter) ([]model.DetectedTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := detectionColumns
	args := []any{}

	clause := " WHERE 1=1"
	if filter.Status != "" {
		if err := validateStatus(filter.Status); err != nil {
			return nil, err
		}
		clause += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Since != nil {
		clause += " AND timestamp >= ?"
		args = append(args, *filter.Since)
	}
	query += clause + " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return s.queryDetections(ctx, query, args...)
}

// RecentDetections returns every detection, in any status, whose event time
// falls inside the dedup lookback window.
func (s *SQLiteStorage) RecentDetections(ctx context.Context, since time.Time) ([]model.DetectedTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryDetections(ctx, detectionColumns+` WHERE timestamp >= ? ORDER BY timestamp DESC`, since)
}

// MarkProcessed transitions a pending detection to processed. Marking an
// already-terminal detection is a no-op; an unknown id is ErrNotFound.
func (s *SQLiteStorage) MarkProcessed(ctx context.Context, id string) error {
	return s.markStatus(ctx, id, model.StatusProcessed)
}

// MarkDismissed transitions a pending detection to dismissed.
func (s *SQLiteStorage) MarkDismissed(ctx context.Context, id string) error {
	return s.markStatus(ctx, id, model.StatusDismissed)
}

func (s *SQLiteStorage) markStatus(ctx context.Context, id string, status model.DetectionStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	result, err := s.db.ExecContext(ctx, `
		UPDATE detections
		SET status = ?, status_changed_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`, string(status), id, string(model.StatusPending))
	if err != nil {
		return fmt.Errorf("failed to update detection status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows > 0 {
		return nil
	}

	// Nothing was pending under that id: distinguish unknown from terminal.
	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM detections WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to check detection existence: %w", err)
	}
	return nil
}

// DismissAllPending dismisses every pending detection in one batch and
// returns how many were affected.
func (s *SQLiteStorage) DismissAllPending(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	result, err := s.db.ExecContext(ctx, `
		UPDATE detections
		SET status = ?, status_changed_at = CURRENT_TIMESTAMP
		WHERE status = ?
	`, string(model.StatusDismissed), string(model.StatusPending))
	if err != nil {
		return 0, fmt.Errorf("failed to dismiss pending detections: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read update result: %w", err)
	}
	return int(rows), nil
}

// PurgeOlderThan deletes terminal-status detections whose last transition is
// older than age. Pending detections are never purged.
func (s *SQLiteStorage) PurgeOlderThan(ctx context.Context, age time.Duration) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cutoff := time.Now().UTC().Add(-age)
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM detections
		WHERE status != ? AND status_changed_at < ?
	`, string(model.StatusPending), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge detections: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read delete result: %w", err)
	}
	return int(rows), nil
}

const detectionColumns = `
	SELECT id, source, source_identity, bank_name, type, amount,
	       merchant, reference_id, account_number, timestamp, raw_text,
	       status, created_at
	FROM detections`

// scanner abstracts *sql.Row and *sql.Rows for scanDetection.
type scanner interface {
	Scan(dest ...any) error
}

func scanDetection(row scanner) (*model.DetectedTransaction, error) {
	var d model.DetectedTransaction
	var source, txType, status, amountText string
	var bankName, merchant, referenceID, accountNumber sql.NullString

	err := row.Scan(
		&d.ID,
		&source,
		&d.SourceIdentity,
		&bankName,
		&txType,
		&amountText,
		&merchant,
		&referenceID,
		&accountNumber,
		&d.Timestamp,
		&d.RawText,
		&status,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(amountText)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount %q for detection %s: %w", amountText, d.ID, err)
	}

	d.Source = model.SourceKind(source)
	d.Type = model.TransactionType(txType)
	d.Status = model.DetectionStatus(status)
	d.Amount = amount
	d.BankName = bankName.String
	d.Merchant = merchant.String
	d.ReferenceID = referenceID.String
	d.AccountNumber = accountNumber.String
	return &d, nil
}

func (s *SQLiteStorage) queryDetections(ctx context.Context, query string, args ...any) ([]model.DetectedTransaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var detections []model.DetectedTransaction
	for rows.Next() {
		d, err := scanDetection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		detections = append(detections, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate detections: %w", err)
	}
	return detections, nil
}

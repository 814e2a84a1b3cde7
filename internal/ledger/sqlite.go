// Package ledger implements the confirmed-transaction ledger boundary. The
// detection engine writes exactly one record per confirmed candidate and
// reads nothing back except account suggestions.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dhanwatch/dhanwatch/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// ErrNoSuggestion indicates no configured account matches the fragment.
var ErrNoSuggestion = errors.New("no matching account")

// SQLiteLedger stores confirmed entries in the app's ledger database, which
// is separate from the engine's own store.
type SQLiteLedger struct {
	db      *sql.DB
	writeMu sync.Mutex
}

// NewSQLiteLedger opens (and if needed initializes) the ledger database.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, errors.New("ledger dbPath cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	queries := []string{
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date DATETIME NOT NULL,
			type TEXT NOT NULL,
			amount TEXT NOT NULL,
			category TEXT,
			description TEXT,
			account_ref TEXT,
			payment_method TEXT,
			note TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS accounts (
			name TEXT PRIMARY KEY,
			number_suffix TEXT NOT NULL
		)`,
	}
	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
		}
	}

	return &SQLiteLedger{db: db}, nil
}

// Close closes the ledger database.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// Record appends one confirmed entry. The row is committed before the call
// returns.
func (l *SQLiteLedger) Record(ctx context.Context, entry model.LedgerEntry) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (
			date, type, amount, category, description,
			account_ref, payment_method, note
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.Date,
		string(entry.Type),
		entry.Amount.String(),
		entry.Category,
		entry.Description,
		entry.AccountRef,
		entry.PaymentMethod,
		entry.Note,
	)
	if err != nil {
		return fmt.Errorf("failed to record ledger entry: %w", err)
	}
	return nil
}

// SuggestAccount finds the configured account whose number suffix matches a
// detected last-digits fragment.
func (l *SQLiteLedger) SuggestAccount(ctx context.Context, accountFragment string) (string, error) {
	fragment := strings.TrimSpace(accountFragment)
	if fragment == "" {
		return "", ErrNoSuggestion
	}

	rows, err := l.db.QueryContext(ctx, `SELECT name, number_suffix FROM accounts`)
	if err != nil {
		return "", fmt.Errorf("failed to query accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var name, suffix string
		if err := rows.Scan(&name, &suffix); err != nil {
			return "", fmt.Errorf("failed to scan account: %w", err)
		}
		// Sources report differing digit counts, so match on the shorter of
		// the two suffixes.
		if strings.HasSuffix(suffix, fragment) || strings.HasSuffix(fragment, suffix) {
			return name, nil
		}
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return "", ErrNoSuggestion
}

// SuggestCategory ranks the categories previously recorded for a merchant —
// most used first, most recently used breaking ties — and returns the top
// one. Entries left at the default category carry no signal and are skipped.
func (l *SQLiteLedger) SuggestCategory(ctx context.Context, merchant string) (string, error) {
	m := strings.TrimSpace(merchant)
	if m == "" {
		return "", ErrNoSuggestion
	}

	var category string
	err := l.db.QueryRowContext(ctx, `
		SELECT category FROM ledger_entries
		WHERE description = ? AND category != '' AND category != ?
		GROUP BY category
		ORDER BY COUNT(*) DESC, MAX(date) DESC
		LIMIT 1
	`, m, model.DefaultCategory).Scan(&category)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoSuggestion
	}
	if err != nil {
		return "", fmt.Errorf("failed to rank categories: %w", err)
	}
	return category, nil
}

// AddAccount registers an account name with its number suffix for fragment
// matching.
func (l *SQLiteLedger) AddAccount(ctx context.Context, name, numberSuffix string) error {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(numberSuffix) == "" {
		return errors.New("account name and number suffix are required")
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO accounts (name, number_suffix) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET number_suffix = excluded.number_suffix
	`, name, numberSuffix)
	if err != nil {
		return fmt.Errorf("failed to add account: %w", err)
	}
	return nil
}

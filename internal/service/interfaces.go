// Package service defines the interfaces for all engine collaborators.
package service

import (
	"context"
	"time"

	"github.com/dhanwatch/dhanwatch/internal/model"
)

// DetectionFilter defines filtering options for detection queries.
type DetectionFilter struct {
	Since  *time.Time
	Status model.DetectionStatus
	Limit  int
}

// Storage defines the contract for the persistence layer: the pending store
// plus the settings record. Mutations are durable before they return.
type Storage interface {
	// Pending store operations
	Enqueue(ctx context.Context, detection *model.DetectedTransaction) (bool, error)
	GetDetection(ctx context.Context, id string) (*model.DetectedTransaction, error)
	ListDetections(ctx context.Context, filter DetectionFilter) ([]model.DetectedTransaction, error)
	RecentDetections(ctx context.Context, since time.Time) ([]model.DetectedTransaction, error)
	MarkProcessed(ctx context.Context, id string) error
	MarkDismissed(ctx context.Context, id string) error
	DismissAllPending(ctx context.Context) (int, error)
	PurgeOlderThan(ctx context.Context, age time.Duration) (int, error)

	// Settings operations
	GetSettings(ctx context.Context) (*model.DetectionSettings, error)
	SaveSettings(ctx context.Context, settings *model.DetectionSettings) error

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// Ledger is the confirmed-transaction ledger boundary. The engine only ever
// writes one record per confirmed candidate; the two suggestion reads propose
// defaults for the confirm prompt from what the ledger already holds.
type Ledger interface {
	Record(ctx context.Context, entry model.LedgerEntry) error
	SuggestAccount(ctx context.Context, accountFragment string) (string, error)
	SuggestCategory(ctx context.Context, merchant string) (string, error)
}

// PermissionChecker reports and requests OS-level capability grants for the
// two observation streams.
type PermissionChecker interface {
	NotificationAccess(ctx context.Context) model.PermissionState
	SmsAccess(ctx context.Context) model.PermissionState
	RequestNotificationAccess(ctx context.Context) (model.PermissionState, error)
	RequestSmsAccess(ctx context.Context) (model.PermissionState, error)
}

// NotificationSource is the live notification stream. The returned channel
// is closed when ctx is canceled or the source shuts down.
type NotificationSource interface {
	Notifications(ctx context.Context) (<-chan model.RawNotification, error)
}

// SmsSource is the live SMS stream plus the historical inbox query used by
// the batch scan path.
type SmsSource interface {
	Messages(ctx context.Context) (<-chan model.RawSms, error)
	ListSms(ctx context.Context, from, to time.Time) ([]model.RawSms, error)
}

// RetryOptions configures retry behavior for operations that support it.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

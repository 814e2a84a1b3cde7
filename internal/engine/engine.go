// Package engine implements the detection coordinator: it owns permission
// state, runs the notification and SMS observation streams, and funnels raw
// events through classification, deduplication and the pending store.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dhanwatch/dhanwatch/internal/classifier"
	"github.com/dhanwatch/dhanwatch/internal/common"
	"github.com/dhanwatch/dhanwatch/internal/dedup"
	"github.com/dhanwatch/dhanwatch/internal/model"
	"github.com/dhanwatch/dhanwatch/internal/service"
)

// Config holds configuration options for the detection engine.
type Config struct {
	// Dedup are the duplicate-matching parameters.
	Dedup dedup.Config
	// Retention bounds how long terminal-status detections are kept before
	// PurgeHistory removes them.
	Retention time.Duration
	// ScanWindowMax caps the historical window a batch scan may cover.
	ScanWindowMax time.Duration
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Dedup:         dedup.DefaultConfig(),
		Retention:     30 * 24 * time.Hour,
		ScanWindowMax: 14 * 24 * time.Hour,
	}
}

// Engine coordinates the two observation streams. The streams are
// independently startable and stoppable; their active state is tracked as
// separate booleans because the user may enable one without the other.
type Engine struct {
	storage       service.Storage
	ledger        service.Ledger
	permissions   service.PermissionChecker
	notifications service.NotificationSource
	sms           service.SmsSource
	classifier    *classifier.Classifier
	dedup         *dedup.Deduplicator

	// ScanProgress, when set, is invoked after each message of a batch scan.
	ScanProgress func(done, total int)

	notifCancel context.CancelFunc
	smsCancel   context.CancelFunc
	notifDone   chan struct{}
	smsDone     chan struct{}

	config Config

	dropped atomic.Int64

	// mu guards listening state and start/stop transitions; ingestMu makes
	// the duplicate check and the enqueue one atomic step across streams.
	mu       sync.Mutex
	ingestMu sync.Mutex

	listening   bool // notification stream active
	smsWatching bool // SMS stream active
}

// New creates a detection engine with the given collaborators.
func New(storage service.Storage, ledger service.Ledger, permissions service.PermissionChecker, notifications service.NotificationSource, sms service.SmsSource, cls *classifier.Classifier, config Config) *Engine {
	if config.Retention <= 0 {
		config.Retention = DefaultConfig().Retention
	}
	if config.ScanWindowMax <= 0 {
		config.ScanWindowMax = DefaultConfig().ScanWindowMax
	}
	return &Engine{
		storage:       storage,
		ledger:        ledger,
		permissions:   permissions,
		notifications: notifications,
		sms:           sms,
		classifier:    cls,
		dedup:         dedup.New(config.Dedup),
		config:        config,
	}
}

// IsListening reports whether the notification stream is active.
func (e *Engine) IsListening() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.listening
}

// IsSmsWatching reports whether the SMS stream is active.
func (e *Engine) IsSmsWatching() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.smsWatching
}

// DroppedEvents returns how many raw events failed mid-pipeline and were
// swallowed to keep the streams alive.
func (e *Engine) DroppedEvents() int64 {
	return e.dropped.Load()
}

// CheckPermissions re-reads OS-level grant state into the persisted settings
// and returns them. It never touches listening state.
func (e *Engine) CheckPermissions(ctx context.Context) (*model.DetectionSettings, error) {
	settings, err := e.storage.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	settings.NotificationPermissionGranted = e.permissions.NotificationAccess(ctx) == model.PermissionGranted
	settings.SmsPermissionGranted = e.permissions.SmsAccess(ctx) == model.PermissionGranted

	if err := e.storage.SaveSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to persist permission state: %w", err)
	}
	return settings, nil
}

// RequestNotificationAccess triggers the OS permission flow for the
// notification stream and refreshes the cached grant state. It does not
// start listening.
func (e *Engine) RequestNotificationAccess(ctx context.Context) (model.PermissionState, error) {
	state, err := e.permissions.RequestNotificationAccess(ctx)
	if err != nil {
		return state, fmt.Errorf("notification access request failed: %w", err)
	}
	if _, err := e.CheckPermissions(ctx); err != nil {
		return state, err
	}
	return state, nil
}

// RequestSmsAccess triggers the OS permission flow for the SMS stream and
// refreshes the cached grant state.
func (e *Engine) RequestSmsAccess(ctx context.Context) (model.PermissionState, error) {
	state, err := e.permissions.RequestSmsAccess(ctx)
	if err != nil {
		return state, fmt.Errorf("sms access request failed: %w", err)
	}
	if _, err := e.CheckPermissions(ctx); err != nil {
		return state, err
	}
	return state, nil
}

// StartListening starts whichever streams have both a permission grant and
// an enabled toggle. With neither permission granted it fails with
// common.ErrPermissionDenied. Starting while already listening is a no-op.
func (e *Engine) StartListening(ctx context.Context) error {
	settings, err := e.CheckPermissions(ctx)
	if err != nil {
		return err
	}

	if !settings.NotificationPermissionGranted && !settings.SmsPermissionGranted {
		return common.NewUserError("neither notification nor SMS access is granted", common.ErrPermissionDenied)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if settings.NotificationPermissionGranted && settings.NotificationListenerEnabled {
		if err := e.startNotificationStreamLocked(); err != nil {
			return err
		}
	}
	if settings.SmsPermissionGranted && settings.SmsReaderEnabled {
		if err := e.startSmsStreamLocked(); err != nil {
			return err
		}
	}

	slog.Info("Detection streams started",
		"notifications", e.listening,
		"sms", e.smsWatching)
	return nil
}

// StopListening stops both streams unconditionally and waits for their
// callbacks to drain. Idempotent.
func (e *Engine) StopListening() {
	e.mu.Lock()
	nCancel, nDone := e.notifCancel, e.notifDone
	sCancel, sDone := e.smsCancel, e.smsDone
	e.notifCancel, e.notifDone = nil, nil
	e.smsCancel, e.smsDone = nil, nil
	e.listening = false
	e.smsWatching = false
	e.mu.Unlock()

	if nCancel != nil {
		nCancel()
		<-nDone
	}
	if sCancel != nil {
		sCancel()
		<-sDone
	}
	slog.Info("Detection streams stopped")
}

// PurgeHistory removes terminal-status detections older than the retention
// window.
func (e *Engine) PurgeHistory(ctx context.Context) (int, error) {
	return e.storage.PurgeOlderThan(ctx, e.config.Retention)
}

// startNotificationStreamLocked starts the notification stream goroutine.
// Callers hold e.mu.
func (e *Engine) startNotificationStreamLocked() error {
	if e.listening {
		return nil
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	events, err := e.notifications.Notifications(streamCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to open notification stream: %w", err)
	}

	done := make(chan struct{})
	e.notifCancel = cancel
	e.notifDone = done
	e.listening = true

	go func() {
		defer close(done)
		for ev := range events {
			e.ingestNotification(streamCtx, ev)
		}
		e.mu.Lock()
		if e.notifDone == done {
			e.listening = false
			e.notifCancel = nil
			e.notifDone = nil
		}
		e.mu.Unlock()
	}()
	return nil
}

// startSmsStreamLocked starts the SMS stream goroutine. Callers hold e.mu.
func (e *Engine) startSmsStreamLocked() error {
	if e.smsWatching {
		return nil
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	events, err := e.sms.Messages(streamCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to open SMS stream: %w", err)
	}

	done := make(chan struct{})
	e.smsCancel = cancel
	e.smsDone = done
	e.smsWatching = true

	go func() {
		defer close(done)
		for ev := range events {
			e.ingestSms(streamCtx, ev)
		}
		e.mu.Lock()
		if e.smsDone == done {
			e.smsWatching = false
			e.smsCancel = nil
			e.smsDone = nil
		}
		e.mu.Unlock()
	}()
	return nil
}

// stopNotificationStream stops only the notification stream, used by the
// listener toggle. The drain happens outside the state lock.
func (e *Engine) stopNotificationStream() {
	e.mu.Lock()
	cancel, done := e.notifCancel, e.notifDone
	e.notifCancel, e.notifDone = nil, nil
	e.listening = false
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// stopSmsStream stops only the SMS stream.
func (e *Engine) stopSmsStream() {
	e.mu.Lock()
	cancel, done := e.smsCancel, e.smsDone
	e.smsCancel, e.smsDone = nil, nil
	e.smsWatching = false
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

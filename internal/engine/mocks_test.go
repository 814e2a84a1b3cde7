package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dhanwatch/dhanwatch/internal/model"
)

// mockPermissions returns fixed grant states.
type mockPermissions struct {
	notif model.PermissionState
	sms   model.PermissionState
}

func (m *mockPermissions) NotificationAccess(_ context.Context) model.PermissionState {
	return m.notif
}

func (m *mockPermissions) SmsAccess(_ context.Context) model.PermissionState {
	return m.sms
}

func (m *mockPermissions) RequestNotificationAccess(_ context.Context) (model.PermissionState, error) {
	return m.notif, nil
}

func (m *mockPermissions) RequestSmsAccess(_ context.Context) (model.PermissionState, error) {
	return m.sms, nil
}

// mockNotifications delivers events over a test-owned channel.
type mockNotifications struct {
	ch chan model.RawNotification
}

func newMockNotifications() *mockNotifications {
	return &mockNotifications{ch: make(chan model.RawNotification, 16)}
}

// Notifications forwards test events until ctx is canceled, matching the
// source contract of closing the channel on shutdown.
func (m *mockNotifications) Notifications(ctx context.Context) (<-chan model.RawNotification, error) {
	out := make(chan model.RawNotification)
	go func() {
		defer close(out)
		for {
			select {
			case ev, ok := <-m.ch:
				if !ok {
					return
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// mockSms delivers live events over a channel and serves a fixed inbox to the
// scan path, recording the requested range.
type mockSms struct {
	ch    chan model.RawSms
	inbox []model.RawSms

	mu       sync.Mutex
	lastFrom time.Time
	lastTo   time.Time
}

func newMockSms(inbox []model.RawSms) *mockSms {
	return &mockSms{ch: make(chan model.RawSms, 16), inbox: inbox}
}

func (m *mockSms) Messages(ctx context.Context) (<-chan model.RawSms, error) {
	out := make(chan model.RawSms)
	go func() {
		defer close(out)
		for {
			select {
			case ev, ok := <-m.ch:
				if !ok {
					return
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (m *mockSms) ListSms(_ context.Context, from, to time.Time) ([]model.RawSms, error) {
	m.mu.Lock()
	m.lastFrom, m.lastTo = from, to
	m.mu.Unlock()
	return m.inbox, nil
}

func (m *mockSms) requestedWindow() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastTo.Sub(m.lastFrom)
}

// mockLedger records entries in memory and can fail the first N writes to
// exercise the retry path.
type mockLedger struct {
	mu                 sync.Mutex
	entries            []model.LedgerEntry
	failures           int
	suggestion         string
	categorySuggestion string
}

func (m *mockLedger) Record(_ context.Context, entry model.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return errors.New("ledger temporarily unavailable")
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockLedger) SuggestAccount(_ context.Context, _ string) (string, error) {
	if m.suggestion == "" {
		return "", errors.New("no matching account")
	}
	return m.suggestion, nil
}

func (m *mockLedger) SuggestCategory(_ context.Context, _ string) (string, error) {
	if m.categorySuggestion == "" {
		return "", errors.New("no category history")
	}
	return m.categorySuggestion, nil
}

func (m *mockLedger) recorded() []model.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.LedgerEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dhanwatch/dhanwatch/internal/classifier"
	"github.com/dhanwatch/dhanwatch/internal/common"
	"github.com/dhanwatch/dhanwatch/internal/model"
	"github.com/dhanwatch/dhanwatch/internal/rules"
	"github.com/dhanwatch/dhanwatch/internal/service"
	"github.com/dhanwatch/dhanwatch/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const gpayPackage = "com.google.android.apps.nbu.paisa.user"

type testFixture struct {
	engine        *Engine
	store         *storage.SQLiteStorage
	ledger        *mockLedger
	permissions   *mockPermissions
	notifications *mockNotifications
	sms           *mockSms
}

func newTestFixture(t *testing.T, permissions *mockPermissions, inbox []model.RawSms) *testFixture {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	f := &testFixture{
		store:         store,
		ledger:        &mockLedger{},
		permissions:   permissions,
		notifications: newMockNotifications(),
		sms:           newMockSms(inbox),
	}
	f.engine = New(store, f.ledger, permissions, f.notifications, f.sms,
		classifier.New(rules.NewRegistry()), DefaultConfig())
	t.Cleanup(f.engine.StopListening)
	return f
}

func pendingCount(t *testing.T, e *Engine) int {
	t.Helper()
	pending, err := e.PendingDetections(context.Background())
	require.NoError(t, err)
	return len(pending)
}

func TestEngine_CrossStreamDedup(t *testing.T) {
	f := newTestFixture(t, &mockPermissions{notif: model.PermissionGranted, sms: model.PermissionGranted}, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	// The same payment observed on both streams: the app notification first,
	// the bank SMS seconds later carrying the same UPI reference.
	f.engine.ingestNotification(ctx, model.RawNotification{
		AppIdentity: gpayPackage,
		Title:       "Google Pay",
		Body:        "You paid ₹450 to Example Store. UPI Ref No 123456789012",
		PostedAt:    now,
	})
	f.engine.ingestSms(ctx, model.RawSms{
		SenderAddress: "VM-HDFCBK",
		Body:          "Rs.450.00 debited from A/c XX1234 to VPA store@upi. UPI Ref No 123456789012",
		ReceivedAt:    now.Add(8 * time.Second),
	})

	pending, err := f.engine.PendingDetections(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, model.SourceNotification, pending[0].Source)
	require.Equal(t, "123456789012", pending[0].ReferenceID)
	require.True(t, pending[0].Amount.Equal(decimal.NewFromInt(450)))
}

func TestEngine_AmountTimeDedupWithoutReference(t *testing.T) {
	f := newTestFixture(t, &mockPermissions{notif: model.PermissionGranted, sms: model.PermissionGranted}, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	f.engine.ingestNotification(ctx, model.RawNotification{
		AppIdentity: gpayPackage,
		Body:        "You paid ₹120 to Chai Point",
		PostedAt:    now,
	})
	// No shared reference, but same amount and direction two minutes later.
	f.engine.ingestSms(ctx, model.RawSms{
		SenderAddress: "VM-HDFCBK",
		Body:          "Rs.120.00 debited from A/c XX1234 for purchase, paid via UPI",
		ReceivedAt:    now.Add(2 * time.Minute),
	})

	require.Equal(t, 1, pendingCount(t, f.engine))

	// The same amount hours later is a separate payment.
	f.engine.ingestSms(ctx, model.RawSms{
		SenderAddress: "VM-HDFCBK",
		Body:          "Rs.120.00 debited from A/c XX1234 at Chai Point, evening purchase paid",
		ReceivedAt:    now.Add(6 * time.Hour),
	})
	require.Equal(t, 2, pendingCount(t, f.engine))
}

func TestEngine_NonPaymentMessagesIgnored(t *testing.T) {
	f := newTestFixture(t, &mockPermissions{notif: model.PermissionGranted, sms: model.PermissionGranted}, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	f.engine.ingestSms(ctx, model.RawSms{
		SenderAddress: "VM-HDFCBK",
		Body:          "Your OTP for net banking login is 482913. Do not share it.",
		ReceivedAt:    now,
	})
	f.engine.ingestNotification(ctx, model.RawNotification{
		AppIdentity: gpayPackage,
		Body:        "Get 10% cashback on your next recharge!",
		PostedAt:    now,
	})
	f.engine.ingestSms(ctx, model.RawSms{
		SenderAddress: "VM-UNKNOWN",
		Body:          "Rs.450 debited from A/c XX1234",
		ReceivedAt:    now,
	})

	require.Equal(t, 0, pendingCount(t, f.engine))
	require.EqualValues(t, 0, f.engine.DroppedEvents())
}

func TestEngine_StartListeningPermissionDenied(t *testing.T) {
	f := newTestFixture(t, &mockPermissions{notif: model.PermissionDenied, sms: model.PermissionDenied}, nil)

	err := f.engine.StartListening(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, common.ErrPermissionDenied)

	var userErr *common.UserError
	require.ErrorAs(t, err, &userErr)

	require.False(t, f.engine.IsListening())
	require.False(t, f.engine.IsSmsWatching())
}

func TestEngine_StartListeningPartialGrant(t *testing.T) {
	f := newTestFixture(t, &mockPermissions{notif: model.PermissionGranted, sms: model.PermissionDenied}, nil)

	require.NoError(t, f.engine.StartListening(context.Background()))
	require.True(t, f.engine.IsListening())
	require.False(t, f.engine.IsSmsWatching())

	// Starting again while active is a no-op.
	require.NoError(t, f.engine.StartListening(context.Background()))
	require.True(t, f.engine.IsListening())
}

func TestEngine_LiveStreamIngestion(t *testing.T) {
	f := newTestFixture(t, &mockPermissions{notif: model.PermissionGranted, sms: model.PermissionGranted}, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, f.engine.StartListening(ctx))
	require.True(t, f.engine.IsListening())
	require.True(t, f.engine.IsSmsWatching())

	f.notifications.ch <- model.RawNotification{
		AppIdentity: gpayPackage,
		Body:        "You paid ₹250 to Book Store",
		PostedAt:    now,
	}
	f.sms.ch <- model.RawSms{
		SenderAddress: "VM-ICICIB",
		Body:          "INR 9,999.00 credited to A/c XX9876. Ref 555666777",
		ReceivedAt:    now,
	}

	require.Eventually(t, func() bool {
		return pendingCount(t, f.engine) == 2
	}, 2*time.Second, 10*time.Millisecond)

	// Closing the sources drains the streams and clears listening state.
	close(f.notifications.ch)
	close(f.sms.ch)
	require.Eventually(t, func() bool {
		return !f.engine.IsListening() && !f.engine.IsSmsWatching()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEngine_StopListeningIdempotent(t *testing.T) {
	f := newTestFixture(t, &mockPermissions{notif: model.PermissionGranted, sms: model.PermissionGranted}, nil)

	require.NoError(t, f.engine.StartListening(context.Background()))
	f.engine.StopListening()
	require.False(t, f.engine.IsListening())
	require.False(t, f.engine.IsSmsWatching())

	f.engine.StopListening()
}

func TestEngine_ScanRecentSms(t *testing.T) {
	now := time.Now().UTC()
	inbox := []model.RawSms{
		{SenderAddress: "VM-HDFCBK", Body: "Your OTP is 111222. Do not share.", ReceivedAt: now.Add(-10 * time.Hour)},
		{SenderAddress: "VM-HDFCBK", Body: "Rs.2500.00 debited from A/c XX1234 to VPA grocer@okaxis. UPI Ref No 123456789012", ReceivedAt: now.Add(-9 * time.Hour)},
		{SenderAddress: "VM-PROMO", Body: "Mega sale! Up to 80% off today only", ReceivedAt: now.Add(-8 * time.Hour)},
		{SenderAddress: "VM-HDFCBK", Body: "Your account statement is ready for download", ReceivedAt: now.Add(-7 * time.Hour)},
		{SenderAddress: "VM-AIRTEL", Body: "Your data pack expires tomorrow", ReceivedAt: now.Add(-6 * time.Hour)},
		{SenderAddress: "VM-HDFCBK", Body: "Dear customer, update your KYC at the nearest branch", ReceivedAt: now.Add(-5 * time.Hour)},
		{SenderAddress: "VM-SPAM01", Body: "You have won a lottery of Rs.10,00,000", ReceivedAt: now.Add(-4 * time.Hour)},
		{SenderAddress: "VM-HDFCBK", Body: "EMI reminder: your payment is due on 05-Sep", ReceivedAt: now.Add(-3 * time.Hour)},
		{SenderAddress: "VM-IRCTCS", Body: "Your ticket PNR 1234567890 is confirmed", ReceivedAt: now.Add(-2 * time.Hour)},
		{SenderAddress: "VM-HDFCBK", Body: "Use net banking for faster payments", ReceivedAt: now.Add(-time.Hour)},
	}

	f := newTestFixture(t, &mockPermissions{notif: model.PermissionDenied, sms: model.PermissionGranted}, inbox)
	ctx := context.Background()

	var progressCalls int
	f.engine.ScanProgress = func(done, total int) {
		progressCalls++
		require.Equal(t, len(inbox), total)
	}

	added, err := f.engine.ScanRecentSms(ctx, 24)
	require.NoError(t, err)
	require.Len(t, added, 1)
	require.Equal(t, "123456789012", added[0].ReferenceID)
	require.Equal(t, len(inbox), progressCalls)
	require.Equal(t, 1, pendingCount(t, f.engine))

	// A second scan over the same inbox finds nothing new.
	added, err = f.engine.ScanRecentSms(ctx, 24)
	require.NoError(t, err)
	require.Empty(t, added)
	require.Equal(t, 1, pendingCount(t, f.engine))
}

func TestEngine_ScanWindowCapped(t *testing.T) {
	f := newTestFixture(t, &mockPermissions{sms: model.PermissionGranted}, nil)

	_, err := f.engine.ScanRecentSms(context.Background(), 10000)
	require.NoError(t, err)
	require.LessOrEqual(t, f.sms.requestedWindow(), DefaultConfig().ScanWindowMax+time.Minute)

	// Zero and negative windows fall back to one day.
	_, err = f.engine.ScanRecentSms(context.Background(), 0)
	require.NoError(t, err)
	require.InDelta(t, (24 * time.Hour).Seconds(), f.sms.requestedWindow().Seconds(), 60)
}

func TestEngine_ScanWithoutPermission(t *testing.T) {
	f := newTestFixture(t, &mockPermissions{sms: model.PermissionDenied}, nil)

	_, err := f.engine.ScanRecentSms(context.Background(), 24)
	require.ErrorIs(t, err, common.ErrPermissionDenied)
}

func TestEngine_ProcessedNotReDetected(t *testing.T) {
	f := newTestFixture(t, &mockPermissions{notif: model.PermissionGranted, sms: model.PermissionGranted}, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	msg := model.RawSms{
		SenderAddress: "VM-HDFCBK",
		Body:          "Rs.880.00 debited from A/c XX1234 to VPA cafe@upi. UPI Ref No 444555666777",
		ReceivedAt:    now,
	}

	f.engine.ingestSms(ctx, msg)
	pending, err := f.engine.PendingDetections(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, f.engine.MarkAsProcessed(ctx, pending[0].ID))

	// Re-observing the identical message must not re-enter the queue.
	f.engine.ingestSms(ctx, msg)
	require.Equal(t, 0, pendingCount(t, f.engine))
}

func TestEngine_Confirm(t *testing.T) {
	f := newTestFixture(t, &mockPermissions{notif: model.PermissionGranted, sms: model.PermissionGranted}, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	f.ledger.suggestion = "HDFC Savings"
	f.ledger.failures = 1 // first write fails, retry succeeds

	f.engine.ingestSms(ctx, model.RawSms{
		SenderAddress: "VM-HDFCBK",
		Body:          "Rs.1200.00 debited from A/c XX1234 to VPA shop@upi. UPI Ref No 888999000111",
		ReceivedAt:    now,
	})
	pending, err := f.engine.PendingDetections(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	id := pending[0].ID

	require.NoError(t, f.engine.Confirm(ctx, id, "Groceries", ""))

	entries := f.ledger.recorded()
	require.Len(t, entries, 1)
	require.Equal(t, "Groceries", entries[0].Category)
	require.Equal(t, "HDFC Savings", entries[0].AccountRef)
	require.Equal(t, model.TypeExpense, entries[0].Type)
	require.True(t, entries[0].Amount.Equal(decimal.NewFromInt(1200)))

	got, err := f.store.GetDetection(ctx, id)
	require.NoError(t, err)
	require.Equal(t, model.StatusProcessed, got.Status)

	// Confirming a terminal candidate is refused, not silently repeated.
	err = f.engine.Confirm(ctx, id, "Groceries", "")
	require.Error(t, err)
	require.Len(t, f.ledger.recorded(), 1)
}

func TestEngine_ConfirmCategoryFromHistory(t *testing.T) {
	f := newTestFixture(t, &mockPermissions{notif: model.PermissionGranted, sms: model.PermissionGranted}, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	f.ledger.categorySuggestion = "Dining"

	f.engine.ingestSms(ctx, model.RawSms{
		SenderAddress: "VM-HDFCBK",
		Body:          "Rs.350.00 debited from A/c XX1234 to VPA cafe@upi. UPI Ref No 555666777888",
		ReceivedAt:    now,
	})
	pending, err := f.engine.PendingDetections(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	// Omitted category is filled from the merchant's ledger history.
	require.NoError(t, f.engine.Confirm(ctx, pending[0].ID, "", ""))
	entries := f.ledger.recorded()
	require.Len(t, entries, 1)
	require.Equal(t, "Dining", entries[0].Category)
}

func TestEngine_ConfirmCategoryFallback(t *testing.T) {
	f := newTestFixture(t, &mockPermissions{notif: model.PermissionGranted, sms: model.PermissionGranted}, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	f.engine.ingestSms(ctx, model.RawSms{
		SenderAddress: "VM-HDFCBK",
		Body:          "Rs.275.00 debited from A/c XX1234 to VPA kiosk@upi. UPI Ref No 121212343434",
		ReceivedAt:    now,
	})
	pending, err := f.engine.PendingDetections(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, f.engine.Confirm(ctx, pending[0].ID, "", ""))
	entries := f.ledger.recorded()
	require.Len(t, entries, 1)
	require.Equal(t, model.DefaultCategory, entries[0].Category)
}

func TestEngine_ConfirmUnknownID(t *testing.T) {
	f := newTestFixture(t, &mockPermissions{}, nil)
	err := f.engine.Confirm(context.Background(), "no-such-id", "Food", "")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEngine_DismissAndClear(t *testing.T) {
	f := newTestFixture(t, &mockPermissions{notif: model.PermissionGranted, sms: model.PermissionGranted}, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	bodies := []string{
		"Rs.100.00 debited from A/c XX1234 to VPA one@upi. UPI Ref No 111111111111",
		"Rs.200.00 debited from A/c XX1234 to VPA two@upi. UPI Ref No 222222222222",
		"Rs.300.00 debited from A/c XX1234 to VPA three@upi. UPI Ref No 333333333333",
	}
	for _, body := range bodies {
		f.engine.ingestSms(ctx, model.RawSms{SenderAddress: "VM-HDFCBK", Body: body, ReceivedAt: now})
	}
	pending, err := f.engine.PendingDetections(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)

	require.NoError(t, f.engine.DismissTransaction(ctx, pending[0].ID))
	require.Equal(t, 2, pendingCount(t, f.engine))

	cleared, err := f.engine.ClearPending(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, cleared)
	require.Equal(t, 0, pendingCount(t, f.engine))
}

func TestEngine_Toggles(t *testing.T) {
	f := newTestFixture(t, &mockPermissions{notif: model.PermissionGranted, sms: model.PermissionGranted}, nil)
	ctx := context.Background()

	require.NoError(t, f.engine.StartListening(ctx))
	require.True(t, f.engine.IsSmsWatching())

	// Toggling the SMS reader off stops its stream but leaves notifications.
	require.NoError(t, f.engine.ToggleSmsReader(ctx, false))
	require.False(t, f.engine.IsSmsWatching())
	require.True(t, f.engine.IsListening())

	settings, err := f.store.GetSettings(ctx)
	require.NoError(t, err)
	require.False(t, settings.SmsReaderEnabled)

	require.NoError(t, f.engine.ToggleSmsReader(ctx, true))
	require.True(t, f.engine.IsSmsWatching())

	require.NoError(t, f.engine.ToggleAutoShowPrompt(ctx, false))
	settings, err = f.store.GetSettings(ctx)
	require.NoError(t, err)
	require.False(t, settings.AutoShowPrompt)
}

func TestEngine_ToggleOnWithoutPermission(t *testing.T) {
	f := newTestFixture(t, &mockPermissions{notif: model.PermissionDenied, sms: model.PermissionDenied}, nil)
	ctx := context.Background()

	err := f.engine.ToggleNotificationListener(ctx, true)
	require.ErrorIs(t, err, common.ErrPermissionDenied)
	require.False(t, f.engine.IsListening())

	// The intent is still recorded so the stream starts once access arrives.
	settings, err := f.store.GetSettings(ctx)
	require.NoError(t, err)
	require.True(t, settings.NotificationListenerEnabled)
}

func TestEngine_CheckPermissionsRefreshesSettings(t *testing.T) {
	perms := &mockPermissions{notif: model.PermissionGranted, sms: model.PermissionDenied}
	f := newTestFixture(t, perms, nil)
	ctx := context.Background()

	settings, err := f.engine.CheckPermissions(ctx)
	require.NoError(t, err)
	require.True(t, settings.NotificationPermissionGranted)
	require.False(t, settings.SmsPermissionGranted)

	perms.sms = model.PermissionGranted
	settings, err = f.engine.CheckPermissions(ctx)
	require.NoError(t, err)
	require.True(t, settings.SmsPermissionGranted)

	// The refreshed state is persisted, not just returned.
	stored, err := f.store.GetSettings(ctx)
	require.NoError(t, err)
	require.True(t, stored.SmsPermissionGranted)
}

func TestEngine_ListenerDisabledByToggle(t *testing.T) {
	f := newTestFixture(t, &mockPermissions{notif: model.PermissionGranted, sms: model.PermissionGranted}, nil)
	ctx := context.Background()

	settings, err := f.store.GetSettings(ctx)
	require.NoError(t, err)
	settings.NotificationListenerEnabled = false
	require.NoError(t, f.store.SaveSettings(ctx, settings))

	// Permission alone is not enough; the user toggle gates the stream.
	require.NoError(t, f.engine.StartListening(ctx))
	require.False(t, f.engine.IsListening())
	require.True(t, f.engine.IsSmsWatching())
}

var _ service.Storage = (*storage.SQLiteStorage)(nil)

func TestDefaultConfigApplied(t *testing.T) {
	e := New(nil, nil, nil, nil, nil, nil, Config{})
	require.Equal(t, DefaultConfig().Retention, e.config.Retention)
	require.Equal(t, DefaultConfig().ScanWindowMax, e.config.ScanWindowMax)
	require.Equal(t, DefaultConfig().Dedup.Lookback, e.dedup.Lookback())
}

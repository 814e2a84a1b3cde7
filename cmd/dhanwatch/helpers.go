package main

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/dhanwatch/dhanwatch/internal/classifier"
	"github.com/dhanwatch/dhanwatch/internal/config"
	"github.com/dhanwatch/dhanwatch/internal/dedup"
	"github.com/dhanwatch/dhanwatch/internal/engine"
	"github.com/dhanwatch/dhanwatch/internal/feed"
	"github.com/dhanwatch/dhanwatch/internal/ledger"
	"github.com/dhanwatch/dhanwatch/internal/rules"
	"github.com/dhanwatch/dhanwatch/internal/service"
	"github.com/dhanwatch/dhanwatch/internal/storage"
	"github.com/spf13/viper"
)

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/dhanwatch/detections.db"
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initLedger opens the app ledger the engine confirms candidates into.
func initLedger() (*ledger.SQLiteLedger, error) {
	ledgerPath := viper.GetString("ledger.path")
	if ledgerPath == "" {
		ledgerPath = "$HOME/.local/share/dhanwatch/ledger.db"
	}
	return ledger.NewSQLiteLedger(config.ExpandPath(ledgerPath))
}

// initEngine wires the full detection pipeline from configuration.
func initEngine(ctx context.Context) (*engine.Engine, service.Storage, *ledger.SQLiteLedger, error) {
	store, err := initStorage(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	ldg, err := initLedger()
	if err != nil {
		_ = store.Close()
		return nil, nil, nil, err
	}

	notifPath := config.ExpandPath(viper.GetString("feed.notifications"))
	smsPath := config.ExpandPath(viper.GetString("feed.sms"))
	poll := viper.GetDuration("feed.poll_interval")

	permissions := feed.NewPermissions(notifPath, smsPath, platformSupported())
	notifications := feed.NewSource(notifPath, poll)
	sms := feed.NewSource(smsPath, poll)

	cfg := engine.DefaultConfig()
	if tol := viper.GetDuration("detection.dedup_tolerance"); tol > 0 {
		cfg.Dedup.Tolerance = tol
	}
	if lb := viper.GetDuration("detection.dedup_lookback"); lb > 0 {
		cfg.Dedup.Lookback = lb
	}
	if days := viper.GetInt("detection.retention_days"); days > 0 {
		cfg.Retention = time.Duration(days) * 24 * time.Hour
	}

	cls := classifier.New(rules.NewRegistry())
	eng := engine.New(store, ldg, permissions, notifications, sms, cls, cfg)
	return eng, store, ldg, nil
}

// platformSupported reports whether this platform can observe notifications
// and SMS at all. Overridable for platforms where the bridge cannot run.
func platformSupported() bool {
	if viper.IsSet("feed.supported") {
		return viper.GetBool("feed.supported")
	}
	// No SMS bridge exists for these.
	return runtime.GOOS != "darwin" && runtime.GOOS != "windows"
}

// defaultDedupConfig exposes the effective dedup parameters for display.
func defaultDedupConfig() dedup.Config {
	cfg := dedup.DefaultConfig()
	if tol := viper.GetDuration("detection.dedup_tolerance"); tol > 0 {
		cfg.Tolerance = tol
	}
	if lb := viper.GetDuration("detection.dedup_lookback"); lb > 0 {
		cfg.Lookback = lb
	}
	return cfg
}

package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dhanwatch/dhanwatch/internal/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func listenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Run the live detection streams",
		Long: `Start the notification and SMS observation streams and keep running
until interrupted.

Each stream starts only if its permission is granted and its toggle is
enabled. Detected candidates land in the pending queue; review them with
'dhanwatch pending'.`,
		RunE: runListen,
	}

	cmd.Flags().Duration("purge-interval", 6*time.Hour, "How often to purge old terminal-status detections")
	_ = viper.BindPFlag("listen.purge_interval", cmd.Flags().Lookup("purge-interval"))

	return cmd
}

func runListen(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	eng, store, ldg, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	defer func() { _ = ldg.Close() }()

	if err := eng.StartListening(ctx); err != nil {
		return err
	}
	defer eng.StopListening()

	cmd.Println(cli.Successf("Listening (notifications=%v, sms=%v). Press Ctrl+C to stop.",
		eng.IsListening(), eng.IsSmsWatching()))

	purgeInterval := viper.GetDuration("listen.purge_interval")
	if purgeInterval <= 0 {
		purgeInterval = 6 * time.Hour
	}
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if dropped := eng.DroppedEvents(); dropped > 0 {
				slog.Warn("Some events were dropped during this session", "count", dropped)
			}
			return nil
		case <-ticker.C:
			purged, purgeErr := eng.PurgeHistory(ctx)
			if purgeErr != nil {
				slog.Warn("History purge failed", "error", purgeErr)
			} else if purged > 0 {
				slog.Info("Purged old detections", "count", purged)
			}
		}
	}
}

func purgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove old processed and dismissed detections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			eng, store, ldg, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			defer func() { _ = ldg.Close() }()

			purged, err := eng.PurgeHistory(ctx)
			if err != nil {
				return fmt.Errorf("purge failed: %w", err)
			}
			cmd.Println(cli.Successf("Purged %d old detections", purged))
			return nil
		},
	}
}

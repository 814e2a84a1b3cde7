package main

import (
	"github.com/dhanwatch/dhanwatch/internal/cli"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan recent SMS messages for transactions",
		Long: `Read the SMS inbox over the trailing window, classify each message and
enqueue new transaction candidates.

Messages already seen and duplicates of existing detections are skipped.`,
		RunE: runScan,
	}

	cmd.Flags().IntP("hours", "H", 48, "Trailing window to scan, in hours")
	_ = viper.BindPFlag("scan.hours", cmd.Flags().Lookup("hours"))

	return cmd
}

func runScan(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	eng, store, ldg, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	defer func() { _ = ldg.Close() }()

	var bar *progressbar.ProgressBar
	eng.ScanProgress = func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("Scanning messages..."),
			)
		}
		_ = bar.Set(done)
	}

	added, err := eng.ScanRecentSms(ctx, viper.GetInt("scan.hours"))
	if bar != nil {
		_ = bar.Finish()
		cmd.Println()
	}
	if err != nil {
		return err
	}

	cmd.Println(cli.Successf("Scan found %d new candidate(s)", len(added)))
	if len(added) > 0 {
		cmd.Println(cli.FormatDetections(added))
	}
	return nil
}

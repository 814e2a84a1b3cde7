package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/dhanwatch/dhanwatch/internal/cli"
	"github.com/dhanwatch/dhanwatch/internal/model"
	"github.com/dhanwatch/dhanwatch/internal/service"
	"github.com/spf13/cobra"
)

func pendingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List detection candidates awaiting review",
		RunE:  runPending,
	}

	cmd.Flags().String("status", "pending", "Status to list (pending, processed, dismissed)")
	cmd.Flags().Int("limit", 0, "Maximum number of rows (0 = all)")

	return cmd
}

func runPending(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	status := model.DetectionStatus(strings.ToLower(cmd.Flag("status").Value.String()))
	limit, _ := cmd.Flags().GetInt("limit")

	detections, err := store.ListDetections(ctx, service.DetectionFilter{
		Status: status,
		Limit:  limit,
	})
	if err != nil {
		return fmt.Errorf("failed to list detections: %w", err)
	}

	cmd.Println(cli.TitleStyle.Render(fmt.Sprintf("Detections: %s (%d)", status, len(detections))))
	cmd.Println(cli.FormatDetections(detections))
	return nil
}

func confirmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confirm <detection-id>",
		Short: "Confirm a candidate into the ledger",
		Long: `Write a pending detection into the app ledger as a confirmed
transaction and mark it processed.

The id may be abbreviated to any unique prefix shown by 'dhanwatch pending'.`,
		Args: cobra.ExactArgs(1),
		RunE: runConfirm,
	}

	cmd.Flags().StringP("category", "c", "", "Ledger category (default: suggested from ledger history)")
	cmd.Flags().StringP("account", "a", "", "Ledger account (default: suggested by account fragment)")

	return cmd
}

func runConfirm(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	eng, store, ldg, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	defer func() { _ = ldg.Close() }()

	id, err := resolveID(ctx, store, args[0])
	if err != nil {
		return err
	}

	category, _ := cmd.Flags().GetString("category")
	account, _ := cmd.Flags().GetString("account")

	if err := eng.Confirm(ctx, id, category, account); err != nil {
		return err
	}
	cmd.Println(cli.Successf("Confirmed %s into the ledger", id[:12]))
	return nil
}

func dismissCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss <detection-id>",
		Short: "Dismiss a pending candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			eng, store, ldg, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			defer func() { _ = ldg.Close() }()

			id, err := resolveID(ctx, store, args[0])
			if err != nil {
				return err
			}
			if err := eng.DismissTransaction(ctx, id); err != nil {
				return err
			}
			cmd.Println(cli.Successf("Dismissed %s", id[:12]))
			return nil
		},
	}
}

func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Dismiss every pending candidate",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			eng, store, ldg, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			defer func() { _ = ldg.Close() }()

			cleared, err := eng.ClearPending(ctx)
			if err != nil {
				return err
			}
			cmd.Println(cli.Successf("Dismissed %d pending candidate(s)", cleared))
			return nil
		},
	}
}

// resolveID expands an abbreviated detection id to the full stored id.
func resolveID(ctx context.Context, store service.Storage, prefix string) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("detection id is required")
	}

	// Exact id first.
	if _, err := store.GetDetection(ctx, prefix); err == nil {
		return prefix, nil
	}

	detections, err := store.ListDetections(ctx, service.DetectionFilter{})
	if err != nil {
		return "", fmt.Errorf("failed to list detections: %w", err)
	}

	var match string
	for i := range detections {
		if !strings.HasPrefix(detections[i].ID, prefix) {
			continue
		}
		if match != "" {
			return "", fmt.Errorf("detection id %q is ambiguous", prefix)
		}
		match = detections[i].ID
	}
	if match == "" {
		return "", fmt.Errorf("no detection with id %q", prefix)
	}
	return match, nil
}

package main

import (
	"github.com/dhanwatch/dhanwatch/internal/cli"
	"github.com/spf13/cobra"
)

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage ledger accounts used for suggestions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <name> <number-suffix>",
		Short: "Register an account with its number suffix",
		Long: `Register a ledger account with the last digits of its number so
detections carrying an account fragment can suggest the right account.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ldg, err := initLedger()
			if err != nil {
				return err
			}
			defer func() { _ = ldg.Close() }()

			if err := ldg.AddAccount(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			cmd.Println(cli.Successf("Registered account %q (…%s)", args[0], args[1]))
			return nil
		},
	})

	return cmd
}

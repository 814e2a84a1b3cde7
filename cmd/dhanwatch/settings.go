package main

import (
	"fmt"

	"github.com/dhanwatch/dhanwatch/internal/cli"
	"github.com/dhanwatch/dhanwatch/internal/model"
	"github.com/spf13/cobra"
)

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change detection settings",
		RunE:  runSettingsShow,
	}

	cmd.AddCommand(toggleCmd("notifications", "Enable or disable the notification listener"))
	cmd.AddCommand(toggleCmd("sms", "Enable or disable the SMS reader"))
	cmd.AddCommand(toggleCmd("autoprompt", "Enable or disable immediate prompts for new candidates"))
	cmd.AddCommand(permissionsCmd())

	return cmd
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	eng, store, ldg, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	defer func() { _ = ldg.Close() }()

	settings, err := eng.CheckPermissions(ctx)
	if err != nil {
		return err
	}

	cmd.Println(cli.FormatSettings(settings))

	dd := defaultDedupConfig()
	cmd.Println(cli.SubtleStyle.Render(fmt.Sprintf("  Dedup tolerance: %s, lookback: %s", dd.Tolerance, dd.Lookback)))
	return nil
}

// toggleCmd builds an on/off subcommand for one of the three user toggles.
func toggleCmd(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:       name + " {on|off}",
		Short:     short,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var on bool
			switch args[0] {
			case "on":
				on = true
			case "off":
				on = false
			default:
				return fmt.Errorf("expected 'on' or 'off', got %q", args[0])
			}

			ctx := cmd.Context()
			eng, store, ldg, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			defer func() { _ = ldg.Close() }()

			switch name {
			case "notifications":
				err = eng.ToggleNotificationListener(ctx, on)
			case "sms":
				err = eng.ToggleSmsReader(ctx, on)
			case "autoprompt":
				err = eng.ToggleAutoShowPrompt(ctx, on)
			}
			if err != nil {
				return err
			}
			cmd.Println(cli.Successf("%s turned %s", name, args[0]))
			return nil
		},
	}
}

func permissionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permissions",
		Short: "Check or request stream permissions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			eng, store, ldg, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			defer func() { _ = ldg.Close() }()

			requestNotif, _ := cmd.Flags().GetBool("request-notifications")
			requestSms, _ := cmd.Flags().GetBool("request-sms")

			if requestNotif {
				state, reqErr := eng.RequestNotificationAccess(ctx)
				if reqErr != nil {
					return reqErr
				}
				printPermission(cmd, "Notification access", state)
			}
			if requestSms {
				state, reqErr := eng.RequestSmsAccess(ctx)
				if reqErr != nil {
					return reqErr
				}
				printPermission(cmd, "SMS access", state)
			}
			if requestNotif || requestSms {
				return nil
			}

			settings, err := eng.CheckPermissions(ctx)
			if err != nil {
				return err
			}
			cmd.Println(cli.FormatSettings(settings))
			return nil
		},
	}

	cmd.Flags().Bool("request-notifications", false, "Run the notification access flow")
	cmd.Flags().Bool("request-sms", false, "Run the SMS access flow")

	return cmd
}

func printPermission(cmd *cobra.Command, label string, state model.PermissionState) {
	switch state {
	case model.PermissionGranted:
		cmd.Println(cli.Successf("%s: %s", label, state))
	case model.PermissionUnavailable:
		cmd.Println(cli.Errorf("%s: unavailable on this platform", label))
	default:
		cmd.Println(cli.ErrorStyle.Render(fmt.Sprintf("%s: %s", label, state)))
	}
}

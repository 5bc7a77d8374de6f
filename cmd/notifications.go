package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwarden/memories/internal/alerts"
	"github.com/cwarden/memories/internal/logging"
	"github.com/cwarden/memories/internal/notify"
	"github.com/cwarden/memories/internal/parser"
)

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Manage the daily memories reminders",
}

var enableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Turn reminders on and schedule them",
	Args:  cobra.NoArgs,
	RunE:  runEnable,
}

var disableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Turn reminders off and cancel the scheduled ones",
	Args:  cobra.NoArgs,
	RunE:  runDisable,
}

var timeCmd = &cobra.Command{
	Use:   "time HH:MM",
	Short: "Set the time of day reminders fire",
	Args:  cobra.ExactArgs(1),
	RunE:  runSetTime,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the reminder settings",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	notificationsCmd.AddCommand(enableCmd, disableCmd, timeCmd, statusCmd)
	rootCmd.AddCommand(notificationsCmd)
}

func runEnable(cmd *cobra.Command, args []string) error {
	logging.SetOutput(cmd.ErrOrStderr(), logLevel())

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	scheduler := newScheduler(st)
	if err := scheduler.Authorize(cmd.Context()); err != nil {
		if errors.Is(err, notify.ErrPermissionDenied) {
			return fmt.Errorf("%w: set alert-urls in your config first", err)
		}
		return err
	}

	snap, err := st.Snapshot()
	if err != nil {
		return err
	}
	// The configured time is only the starting point; later changes go
	// through "notifications time"
	if !snap.Prompted {
		if err := st.SetNotificationTime(cfg.NotificationTime.Hour, cfg.NotificationTime.Minute); err != nil {
			return err
		}
		if err := st.SetPrompted(true); err != nil {
			return err
		}
	}
	if err := st.SetEnabled(true); err != nil {
		return err
	}

	library, items, err := openLibrary(st)
	if err != nil {
		return err
	}
	defer library.Close()

	entries, err := reschedule(cmd.Context(), st, items, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Reminders enabled, %d scheduled.\n", len(entries))
	return nil
}

func runDisable(cmd *cobra.Command, args []string) error {
	logging.SetOutput(cmd.ErrOrStderr(), logLevel())

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.SetEnabled(false); err != nil {
		return err
	}
	if err := newScheduler(st).Disable(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Reminders disabled.")
	return nil
}

func runSetTime(cmd *cobra.Command, args []string) error {
	logging.SetOutput(cmd.ErrOrStderr(), logLevel())

	at, err := parser.NewTimeParser().ParseClock(args[0])
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.SetNotificationTime(at.Hour, at.Minute); err != nil {
		return err
	}

	library, items, err := openLibrary(st)
	if err != nil {
		return err
	}
	defer library.Close()

	entries, err := reschedule(cmd.Context(), st, items, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Reminders fire at %s, %d scheduled.\n", at, len(entries))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	snap, err := st.Snapshot()
	if err != nil {
		return err
	}
	scheduled, err := alerts.NewRegistry(st).Scheduled()
	if err != nil {
		return err
	}

	state := "disabled"
	if snap.Enabled {
		state = "enabled"
	}
	permitted := "no"
	if alerts.NewPermission(cfg.AlertURLs).Allowed(cmd.Context()) {
		permitted = "yes"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Reminders:    %s\n", state)
	fmt.Fprintf(out, "Time:         %s\n", notify.Clock{Hour: snap.Hour, Minute: snap.Minute})
	fmt.Fprintf(out, "Deliverable:  %s\n", permitted)
	fmt.Fprintf(out, "Scheduled:    %d\n", len(scheduled))
	return nil
}

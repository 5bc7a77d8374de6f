package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwarden/memories/internal/alerts"
	"github.com/cwarden/memories/internal/logging"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Deliver or inspect scheduled reminders",
}

var alertsRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Deliver reminders as they come due until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runAlerts,
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled reminders",
	Args:  cobra.NoArgs,
	RunE:  runAlertsList,
}

func init() {
	alertsCmd.AddCommand(alertsRunCmd, alertsListCmd)
	rootCmd.AddCommand(alertsCmd)
}

func runAlerts(cmd *cobra.Command, args []string) error {
	logging.SetOutput(cmd.ErrOrStderr(), logLevel())

	sender, err := alerts.NewShoutrrrSender(cfg.AlertURLs, 10*time.Second)
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return alerts.NewDaemon(st, sender, cfg.AlertPoll, cfg.AlertRate).Run(ctx)
}

func runAlertsList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	scheduled, err := alerts.NewRegistry(st).Scheduled()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(scheduled) == 0 {
		fmt.Fprintln(out, "No reminders scheduled.")
		return nil
	}
	for _, a := range scheduled {
		status := ""
		if !a.Delivered.IsZero() {
			status = " (delivered)"
		}
		fmt.Fprintf(out, "  %s %s  %s%s\n",
			a.FireAt.Format(cfg.DateFormat),
			a.FireAt.Format(cfg.TimeFormat),
			a.Title, status)
	}
	return nil
}

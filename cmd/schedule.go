package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwarden/memories/internal/alerts"
	"github.com/cwarden/memories/internal/logging"
	"github.com/cwarden/memories/internal/media"
	"github.com/cwarden/memories/internal/notify"
	"github.com/cwarden/memories/internal/parser"
	"github.com/cwarden/memories/internal/store"
)

var (
	scheduleDryRun bool
	scheduleNow    string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Rebuild the memories reminders from the library",
	Long: `Count the library's photos per calendar day and schedule one reminder for
each upcoming day that has memories, up to 64 reminders.`,
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().BoolVar(&scheduleDryRun, "dry-run", false, "Print the plan without storing it")
	scheduleCmd.Flags().StringVar(&scheduleNow, "now", "", "Plan as if it were this moment, e.g. '2024-06-15 08:00'")
	rootCmd.AddCommand(scheduleCmd)
}

func newScheduler(st *store.Store) *notify.Scheduler {
	return notify.NewScheduler(
		alerts.NewRegistry(st),
		alerts.NewPermission(cfg.AlertURLs),
		notify.NewFormatter(cfg.Locale),
		cfg.DebugNotifications,
	)
}

func countDays(items []media.Item) map[notify.DayKey]int {
	dates := make([]time.Time, 0, len(items))
	for _, item := range items {
		dates = append(dates, item.Created)
	}
	return notify.CountByDay(dates)
}

func reminderSettings(st *store.Store) (notify.Settings, error) {
	snap, err := st.Snapshot()
	if err != nil {
		return notify.Settings{}, err
	}
	return notify.Settings{
		Enabled: snap.Enabled,
		At:      notify.Clock{Hour: snap.Hour, Minute: snap.Minute},
	}, nil
}

// reschedule replaces the stored reminders with the plan for items.
func reschedule(ctx context.Context, st *store.Store, items []media.Item, now time.Time) ([]notify.Entry, error) {
	settings, err := reminderSettings(st)
	if err != nil {
		return nil, err
	}
	return newScheduler(st).Rebuild(ctx, countDays(items), settings, now)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	logging.SetOutput(cmd.ErrOrStderr(), logLevel())

	now := time.Now()
	if scheduleNow != "" {
		var err error
		if now, err = parser.NewTimeParser().ParseMoment(scheduleNow); err != nil {
			return err
		}
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	library, items, err := openLibrary(st)
	if err != nil {
		return err
	}
	defer library.Close()

	var entries []notify.Entry
	if scheduleDryRun {
		settings, err := reminderSettings(st)
		if err != nil {
			return err
		}
		entries = notify.Plan(countDays(items), settings.At, now, notify.NewFormatter(cfg.Locale))
		if cfg.DebugNotifications {
			entries = notify.DebugOverride(entries, now)
		}
	} else {
		entries, err = reschedule(cmd.Context(), st, items, now)
		if err != nil {
			return err
		}
	}

	printEntries(cmd, entries)
	return nil
}

func printEntries(cmd *cobra.Command, entries []notify.Entry) {
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No reminders scheduled.")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(out, "  %s %s  %s\n",
			e.FireDate.Format(cfg.DateFormat),
			e.FireDate.Format(cfg.TimeFormat),
			e.Title)
	}
}

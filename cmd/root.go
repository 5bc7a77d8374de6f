package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/cwarden/memories/internal/config"
	"github.com/cwarden/memories/internal/logging"
	"github.com/cwarden/memories/internal/media"
	"github.com/cwarden/memories/internal/parser"
	"github.com/cwarden/memories/internal/store"
	"github.com/cwarden/memories/internal/ui"
	"github.com/cwarden/memories/internal/upgrade"
)

var (
	cfgFile   string
	mediaDirs []string
	onDay     string
	debug     bool
	cfg       *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "memories",
	Short: "Browse the photos you took on this day in earlier years",
	Long: `Memories shows the photos and videos from your library that were taken
on today's date in past years, and can remind you when there are some to see.`,
	RunE:          runTUI,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringSliceVarP(&mediaDirs, "dir", "d", []string{}, "Media directory (can be specified multiple times)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.Flags().StringVar(&onDay, "on", "", "Show memories for another day, e.g. 'tomorrow' or 'Dec 25'")
}

func initConfig() {
	var err error
	cfg, err = config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if len(mediaDirs) > 0 {
		cfg.MediaDirs = mediaDirs
	}
}

func logLevel() log.Level {
	if debug {
		return log.DebugLevel
	}
	return log.InfoLevel
}

func openStore() (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Database), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return store.Open(cfg.Database)
}

// openLibrary scans the configured media directories.
func openLibrary(st *store.Store) (*media.FileStore, []media.Item, error) {
	library := media.NewFileStore(afero.NewOsFs(), st, media.Options{
		Dirs:     cfg.MediaDirs,
		Workers:  cfg.FetchWorkers,
		CacheTTL: cfg.PreviewCacheTTL,
		ReadOnly: cfg.ReadOnly,
	})
	items, err := library.Scan()
	if err != nil {
		library.Close()
		return nil, nil, fmt.Errorf("failed to scan library: %w", err)
	}
	return library, items, nil
}

// resolveDay picks the day to show: --on, then the day of the last
// delivered reminder, then today.
func resolveDay(st *store.Store, now time.Time) (time.Time, error) {
	if onDay != "" {
		p := parser.NewTimeParser()
		p.SetNow(now)
		return p.ParseDay(onDay)
	}

	day, ok, err := st.TakeLaunchDate(now.Location())
	if err != nil {
		logging.Warn("failed to read launch date", "error", err)
	}
	if !ok {
		return now, nil
	}
	return day, nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	if err := logging.Init(cfg.LogDir, logLevel()); err != nil {
		return err
	}
	defer logging.Close()

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

	now := time.Now()
	day, err := resolveDay(st, now)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Keep reminders in step with the library on every launch
	if _, err := reschedule(ctx, st, items, now); err != nil {
		logging.Warn("failed to schedule reminders", "error", err)
	}

	memories := media.OnThisDay(items, day)
	if len(memories) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No memories for %s.\n", day.Format(cfg.DateFormat))
		return nil
	}

	gate := upgrade.NewGate(st, cfg.HighQualityLimit, nil)
	model, err := ui.NewModel(cfg, library, gate, memories, day, afero.NewOsFs())
	if err != nil {
		return err
	}
	defer model.Close()

	if cfg.WatchLibrary {
		watcher, err := media.NewWatcher(func() {
			if _, err := library.Rescan(ctx); err != nil {
				logging.Warn("failed to rescan library", "error", err)
				return
			}
			if _, err := reschedule(ctx, st, library.Items(), time.Now()); err != nil {
				logging.Warn("failed to schedule reminders", "error", err)
			}
		})
		if err != nil {
			logging.Warn("failed to watch library", "error", err)
		} else {
			defer watcher.Close()
			for _, dir := range cfg.MediaDirs {
				if err := watcher.AddDir(dir); err != nil {
					logging.Warn("failed to watch directory", "dir", dir, "error", err)
				}
			}
		}
	}

	logging.Info("showing memories", "day", day.Format(time.DateOnly), "count", len(memories))
	p := tea.NewProgram(model)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}

	return nil
}

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwarden/memories/internal/logging"
	"github.com/cwarden/memories/internal/media"
	"github.com/cwarden/memories/internal/parser"
)

var todayOn string

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "List today's memories and exit",
	Long:  `List the photos and videos taken on this day in earlier years in a simple text format and exit.`,
	RunE:  runToday,
}

func init() {
	todayCmd.Flags().StringVar(&todayOn, "on", "", "List memories for another day")
	rootCmd.AddCommand(todayCmd)
}

func runToday(cmd *cobra.Command, args []string) error {
	logging.SetOutput(cmd.ErrOrStderr(), logLevel())

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

	day := time.Now()
	if todayOn != "" {
		p := parser.NewTimeParser()
		if day, err = p.ParseDay(todayOn); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	memories := media.OnThisDay(items, day)
	fmt.Fprintf(out, "Memories for %s:\n", day.Format(cfg.DateFormat))
	if len(memories) == 0 {
		fmt.Fprintln(out, "No memories found.")
		return nil
	}

	for _, item := range memories {
		favorite := ""
		if item.Favorite {
			favorite = " ♥"
		}
		fmt.Fprintf(out, "  %d  %-6s %s%s\n", item.Year(), item.Kind, item.Path, favorite)
	}

	return nil
}

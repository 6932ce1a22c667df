// cmd/turntrack/main.go
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"turntrack/internal/journal"
	"turntrack/internal/watch"
)

var logger, _ = zap.NewDevelopment()

var rootCmd = &cobra.Command{
	Use:   "turntrack",
	Short: "Turntrack watches file mutations and reports them as git-style diffs",
	Long: `Turntrack observes the files touched during a turn of work and produces
a single git-compatible unified diff of their net effect against each
file's state when the turn began. Files keep their identity across
renames, and baselines are captured exactly once at first touch.`,
}

func init() {
	var (
		interval    time.Duration
		journalPath string
	)

	var watchCmd = &cobra.Command{
		Use:   "watch [dir]",
		Short: "Watch a directory and print per-turn diffs",
		Long: `Watch a directory tree and synthesize an aggregate diff at the end of
each turn. A turn ends on every interval tick, or on Ctrl-C when no
interval is set. With --journal, each turn's diff is also recorded for
later replay.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			observer, err := watch.New(args[0], logger)
			if err != nil {
				return fmt.Errorf("starting observer: %w", err)
			}
			defer observer.Close()

			var jnl *journal.Journal
			if journalPath != "" {
				jnl, err = journal.Open(journalPath, logger)
				if err != nil {
					return fmt.Errorf("opening journal: %w", err)
				}
				defer jnl.Close()
			}

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

			var tick <-chan time.Time
			if interval > 0 {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				tick = ticker.C
			}

			fmt.Println("Watching", args[0])
			for {
				select {
				case <-tick:
					if err := flushTurn(observer, jnl); err != nil {
						return err
					}
				case <-sig:
					return flushTurn(observer, jnl)
				}
			}
		},
	}
	watchCmd.Flags().DurationVarP(&interval, "interval", "i", 0,
		"end a turn on every tick (0 ends the single turn on Ctrl-C)")
	watchCmd.Flags().StringVarP(&journalPath, "journal", "j", "",
		"record each turn's diff in a journal database at this path")

	var replayCmd = &cobra.Command{
		Use:   "replay",
		Short: "Print the diffs recorded in a journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if journalPath == "" {
				return fmt.Errorf("--journal is required")
			}

			jnl, err := journal.Open(journalPath, logger)
			if err != nil {
				return fmt.Errorf("opening journal: %w", err)
			}
			defer jnl.Close()

			entries, err := jnl.List()
			if err != nil {
				return fmt.Errorf("listing turns: %w", err)
			}
			if len(entries) == 0 {
				fmt.Println("journal is empty")
				return nil
			}

			header := color.New(color.FgYellow, color.Bold)
			for _, entry := range entries {
				header.Printf("turn %s (%s)\n", entry.TurnID,
					entry.RecordedAt.Format(time.RFC3339))
				printDiff(entry.Diff)
			}
			return nil
		},
	}
	replayCmd.Flags().StringVarP(&journalPath, "journal", "j", "",
		"journal database path")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(replayCmd)
}

// flushTurn ends the current turn and prints its diff. Synthesis is
// retried from scratch with backoff since a transient read failure
// leaves no usable partial result.
func flushTurn(observer *watch.Observer, jnl *journal.Journal) error {
	bk := backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(3*time.Second),
		backoff.WithInitialInterval(100*time.Millisecond),
	)

	var out string
	err := backoff.Retry(func() error {
		var err error
		out, err = observer.EndTurn()
		if err != nil {
			logger.Warn("diff synthesis failed, retrying", zap.Error(err))
		}
		return err
	}, bk)
	if err != nil {
		return fmt.Errorf("synthesizing turn diff: %w", err)
	}

	if out == "" {
		fmt.Println("no changes this turn")
		return nil
	}

	printDiff(out)

	if jnl != nil {
		id, err := jnl.Record("", out)
		if err != nil {
			return fmt.Errorf("recording turn: %w", err)
		}
		logger.Info("turn journaled", zap.String("turn_id", id))
	}
	return nil
}

func printDiff(text string) {
	meta := color.New(color.Bold)
	hunk := color.New(color.FgCyan)
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)

	for _, line := range strings.Split(strings.TrimSuffix(text, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git"),
			strings.HasPrefix(line, "index "),
			strings.HasPrefix(line, "old mode"),
			strings.HasPrefix(line, "new mode"),
			strings.HasPrefix(line, "new file mode"),
			strings.HasPrefix(line, "deleted file mode"),
			strings.HasPrefix(line, "--- "),
			strings.HasPrefix(line, "+++ "):
			meta.Println(line)
		case strings.HasPrefix(line, "@@"):
			hunk.Println(line)
		case strings.HasPrefix(line, "+"):
			added.Println(line)
		case strings.HasPrefix(line, "-"):
			removed.Println(line)
		default:
			fmt.Println(line)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

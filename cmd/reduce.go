package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"wio/internal/logging"
	"wio/internal/processor"
	"wio/internal/tui"
)

var (
	reduceOpts  reduceFlags
	reducePlain bool
)

var reduceCmd = &cobra.Command{
	Use:   "reduce [flags] <path>",
	Short: "Shrink an image or every image in a directory to a size budget",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		cfg, err := reduceOpts.loadConfig(cmd)
		if err != nil {
			return err
		}

		interactive := !reducePlain && isatty.IsTerminal(os.Stdout.Fd())
		log, closeLog, err := logging.New(logging.Options{
			Level: cfg.Log.Level,
			File:  cfg.Log.File,
			Quiet: interactive,
		})
		if err != nil {
			return err
		}
		defer closeLog()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runner := &processor.Runner{
			Reducer: processor.NewReducer(cfg.Quantizer(), cfg.Reduce.AutoOrient, log),
			Workers: cfg.Reduce.Workers,
			Log:     log,
		}

		updates := make(chan processor.ProgressUpdate, 64)
		uiDone := startSink(interactive, updates, stop)

		summary, err := runner.RunPath(ctx, path, cfg.Reduce.Recursive, cfg.Task(""), updates)
		close(updates)
		<-uiDone
		if err != nil {
			return err
		}

		printReport(summary)
		return nil
	},
}

// startSink hands the update stream to exactly one consumer, which owns
// stdout until the stream is closed.
func startSink(interactive bool, updates <-chan processor.ProgressUpdate, interrupt func()) <-chan struct{} {
	done := make(chan struct{})
	if !interactive {
		go func() {
			defer close(done)
			tui.Printer{Out: os.Stdout}.Consume(updates)
		}()
		return done
	}

	program := tea.NewProgram(tui.NewModel(updates).OnInterrupt(interrupt))
	go func() {
		defer close(done)
		runView(program, updates)
	}()
	return done
}

type viewRunner interface {
	Run() (tea.Model, error)
}

// runView runs the progress view, then drains whatever it left unread. The
// view can stop before the stream closes (signal, render failure) and the
// workers must never block on a send.
func runView(view viewRunner, updates <-chan processor.ProgressUpdate) {
	if _, err := view.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] progress view: %v\n", err)
	}
	for range updates {
	}
}

func printReport(summary processor.Summary) {
	fmt.Fprintln(os.Stdout, tui.RenderSummary(tui.SummaryRows(summary)))
	if len(summary.Errors) > 0 {
		fmt.Fprintln(os.Stdout, tui.RenderErrors(summary.Errors))
	}
}

func init() {
	reduceOpts.register(reduceCmd.Flags())
	reduceCmd.Flags().BoolVar(&reducePlain, "plain", false, "print one line per file instead of the live progress view")

	rootCmd.AddCommand(reduceCmd)
}

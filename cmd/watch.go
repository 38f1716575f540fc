package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"wio/internal/logging"
	"wio/internal/processor"
	"wio/internal/watch"
)

var watchOpts reduceFlags

var watchCmd = &cobra.Command{
	Use:   "watch [flags] <dir>",
	Short: "Reduce images as they are added to a directory, until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		info, err := os.Stat(dir)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}

		cfg, err := watchOpts.loadConfig(cmd)
		if err != nil {
			return err
		}

		log, closeLog, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
		if err != nil {
			return err
		}
		defer closeLog()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runner := &processor.Runner{
			Reducer: processor.NewReducer(cfg.Quantizer(), cfg.Reduce.AutoOrient, log),
			Workers: 1,
			Log:     log,
		}

		w, err := watch.New(dir, cfg.Reduce.Recursive, runner, cfg.Task(""), log)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Watching %s (ctrl+c to stop)\n", dir)
		updates := make(chan processor.ProgressUpdate, 64)
		uiDone := startSink(false, updates, stop)

		summary, err := w.Run(ctx, updates)
		close(updates)
		<-uiDone
		if err != nil {
			return err
		}

		printReport(summary)
		return nil
	},
}

func init() {
	watchOpts.register(watchCmd.Flags())

	rootCmd.AddCommand(watchCmd)
}

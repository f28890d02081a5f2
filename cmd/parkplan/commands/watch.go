package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/parkplan/internal/filter"
	"github.com/dyluth/parkplan/internal/printer"
	"github.com/dyluth/parkplan/internal/timespec"
	"github.com/dyluth/parkplan/internal/watch"
)

var (
	watchRunID        string
	watchOutputFormat string
	watchUntilDone    bool
	watchStage        string
	watchStatus       string
	watchFailedOnly   bool
	watchFor          string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor run progress in real time",
	Long: `Stream run events published by 'parkplan run --publish'.

Output Formats:
  default - Human-readable output with timestamps
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Watch every run on the configured instance
  parkplan watch

  # Follow one run until it completes or fails
  parkplan watch --run sip-2024 --until-done

  # Only show policy stage events, for at most ten minutes
  parkplan watch --stage policy --for 10m

  # Show failures only
  parkplan watch --failed

  # Export events as JSON
  parkplan watch --output=json > events.jsonl`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchRunID, "run", "r", "", "Only show events of this run")
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	watchCmd.Flags().BoolVar(&watchUntilDone, "until-done", false, "Exit after the first completed or failed run")
	watchCmd.Flags().StringVar(&watchStage, "stage", "", "Only show events of stages matching this glob ('run' for run-level events)")
	watchCmd.Flags().StringVar(&watchStatus, "status", "", "Only show events with this status (started, completed, failed)")
	watchCmd.Flags().BoolVar(&watchFailedOnly, "failed", false, "Only show events of failed runs")
	watchCmd.Flags().StringVar(&watchFor, "for", "", "Stop watching after a duration (10m) or at an RFC3339 time")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	format, err := watch.ParseOutputFormat(watchOutputFormat)
	if err != nil {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	criteria := &filter.Criteria{StageGlob: watchStage, Status: watchStatus, FailedOnly: watchFailedOnly}
	if err := criteria.Validate(); err != nil {
		return printer.Error(
			"invalid stage filter",
			fmt.Sprintf("Pattern %q: %v", watchStage, err),
			[]string{"Use a glob such as 'geo', 'po*' or 'run'"},
		)
	}

	ctx, stop := signal.NotifyContext(background(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watchFor != "" {
		deadline, err := timespec.Deadline(watchFor, time.Now())
		if err != nil {
			return printer.Error("invalid --for value", err.Error(), nil)
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	cfg, err := loadConfig()
	if err != nil {
		return printer.Error("invalid configuration", err.Error(), nil)
	}

	client, err := connectEvents(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	sub, err := client.SubscribeRunEvents(ctx, watchRunID)
	if err != nil {
		return fmt.Errorf("failed to subscribe to run events: %w", err)
	}
	defer sub.Close()

	if format == watch.OutputFormatDefault {
		printer.Step("watching run events on instance '%s'\n", client.InstanceName())
	}

	_, err = watch.Stream(ctx, sub, cmd.OutOrStdout(), watch.Options{
		Format:        format,
		UntilTerminal: watchUntilDone,
		Filter:        criteria,
		OnError: func(err error) {
			printer.Warning("skipping malformed event: %v\n", err)
		},
	})
	return err
}

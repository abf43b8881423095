package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ricesearch/qac-eval/internal/bus"
	"github.com/ricesearch/qac-eval/internal/config"
	"github.com/ricesearch/qac-eval/internal/evaluation"
)

func (a *app) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent evaluation runs",
		Long: `List recent evaluation runs, newest first.

Runs are read from the Redis history store, or from a JSONL event log when
--event-log is given.`,
		Example: `  qac-eval history --limit 5
  qac-eval history --event-log events.jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			limit := cfg.History.Limit
			if cmd.Flags().Changed("limit") {
				limit, _ = cmd.Flags().GetInt("limit")
			}
			eventLog, _ := cmd.Flags().GetString("event-log")

			var runs []*evaluation.RunSummary
			if eventLog != "" {
				runs, err = runsFromEventLog(eventLog, limit)
			} else {
				runs, err = a.runsFromStore(cmd.Context(), cfg.History, limit)
			}
			if err != nil {
				log.WithError(err).Error("Failed to read run history")
				return err
			}

			return writeRuns(cmd.OutOrStdout(), runs)
		},
	}

	cmd.Flags().Int("limit", 0, "maximum runs to list (default from config)")
	cmd.Flags().String("event-log", "", "read runs from this event log instead of Redis")

	return cmd
}

func (a *app) runsFromStore(ctx context.Context, cfg config.HistoryConfig, limit int) ([]*evaluation.RunSummary, error) {
	store, err := a.newStore(cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return store.Recent(ctx, limit)
}

// runsFromEventLog decodes eval.completed payloads from a JSONL event log.
func runsFromEventLog(path string, limit int) ([]*evaluation.RunSummary, error) {
	events, err := bus.ReadEvents(path, time.Time{}, 0)
	if err != nil {
		return nil, err
	}

	var runs []*evaluation.RunSummary
	for i := len(events) - 1; i >= 0; i-- {
		if limit > 0 && len(runs) >= limit {
			break
		}
		ev := events[i].Event
		if ev.Type != bus.TypeEvalCompleted {
			continue
		}
		var run evaluation.RunSummary
		if err := ev.DecodePayload(&run); err != nil {
			continue
		}
		runs = append(runs, &run)
	}

	return runs, nil
}

func writeRuns(w io.Writer, runs []*evaluation.RunSummary) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tID\tTOPK\tRECORDS\tMRR\tSUCCESS")
	for _, run := range runs {
		mrr, success := "-", "-"
		if total, ok := run.Report(evaluation.PartitionTotal); ok {
			mrr = fmt.Sprintf("%0.4f", total.MeanMRR)
			success = fmt.Sprintf("%0.4f", total.MeanSuccessRate)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
			run.StartedAt.Format(time.RFC3339),
			run.ID,
			run.TopK,
			run.Records,
			mrr,
			success,
		)
	}
	return tw.Flush()
}

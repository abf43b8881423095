package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ricesearch/qac-eval/internal/bus"
	"github.com/ricesearch/qac-eval/internal/config"
	"github.com/ricesearch/qac-eval/internal/evaluation"
	"github.com/ricesearch/qac-eval/internal/metrics"
	"github.com/ricesearch/qac-eval/internal/pkg/hash"
	"github.com/ricesearch/qac-eval/internal/pkg/logger"
)

const eventSource = "qac-eval"

func (a *app) evalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Score completions against target queries",
		Long: `Score ranked completions against target queries.

Line i of the completions file holds the tab-separated candidates for the
query on line i of the query file. Queries listed in the seen file are
reported separately from the rest.

Without --seen no query can be seen, so only the unseen and total stanzas
are printed. With --seen all three are printed, and the run fails if no
query falls into a partition.`,
		Example: `  qac-eval eval --query test.txt --completions out.tsv
  qac-eval eval --query test.txt --completions out.tsv --seen train.txt --topk 5`,
		RunE: a.runEval,
	}

	cmd.Flags().String("query", "", "file with one target query per line")
	cmd.Flags().String("completions", "", "file with tab-separated candidates per line")
	cmd.Flags().String("seen", "", "file with queries seen during training")
	cmd.Flags().Int("topk", 0, "metric cutoff (default from config)")
	cmd.Flags().Bool("publish", false, "publish a run summary on the event bus")
	cmd.Flags().Bool("record", false, "record the run summary in history")
	cmd.Flags().String("metrics-file", "", "write Prometheus metrics for the run to this file")
	_ = cmd.MarkFlagRequired("query")
	_ = cmd.MarkFlagRequired("completions")

	return cmd
}

func (a *app) runEval(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	queryPath, _ := cmd.Flags().GetString("query")
	completionPath, _ := cmd.Flags().GetString("completions")
	seenPath, _ := cmd.Flags().GetString("seen")
	publish, _ := cmd.Flags().GetBool("publish")
	record, _ := cmd.Flags().GetBool("record")
	metricsFile, _ := cmd.Flags().GetString("metrics-file")

	if cmd.Flags().Changed("topk") {
		cfg.Eval.TopK, _ = cmd.Flags().GetInt("topk")
	}

	runID := uuid.NewString()
	log = log.WithRun(runID)
	started := time.Now()

	seen, err := evaluation.LoadSeenSet(seenPath)
	if err != nil {
		log.WithError(err).Error("Failed to load seen queries")
		return err
	}

	ev, err := evaluation.NewEvaluator(seen, evaluation.Options{
		TopK:             cfg.Eval.TopK,
		Truncate:         cfg.Eval.Alignment == config.AlignTruncate,
		ProgressInterval: cfg.Eval.ProgressInterval,
		Logger:           log,
	})
	if err != nil {
		return err
	}

	log.Debug("Starting evaluation",
		"query", queryPath,
		"completions", completionPath,
		"seen", seenPath,
		"seen_queries", seen.Len(),
		"topk", ev.Table().TopK(),
	)

	ctx := cmd.Context()
	res, err := ev.RunFiles(ctx, queryPath, completionPath)
	if err != nil {
		log.WithError(err).Error("Evaluation failed")
		return err
	}

	// Every report must exist before anything is printed.
	reports, err := res.Aggregator.Reports(ev.Partitions()...)
	if err != nil {
		log.WithError(err).Error("Evaluation failed")
		return err
	}

	if err := evaluation.WriteReports(cmd.OutOrStdout(), reports); err != nil {
		return err
	}
	for _, r := range reports {
		log.WithPartition(string(r.Partition)).Debug("Partition report",
			"count", r.Count,
			"mrr", r.MeanMRR,
			"success_rate", r.MeanSuccessRate,
		)
	}

	log.Info("Evaluation complete",
		"records", res.Records,
		"truncated", res.Truncated,
		"duration", time.Since(started),
	)

	if !publish && !record && metricsFile == "" {
		return nil
	}

	summary := &evaluation.RunSummary{
		ID:             runID,
		StartedAt:      started,
		Duration:       time.Since(started),
		TopK:           cfg.Eval.TopK,
		QueryFile:      queryPath,
		CompletionFile: completionPath,
		SeenFile:       seenPath,
		Records:        res.Records,
		Truncated:      res.Truncated,
		Reports:        reports,
	}
	if summary.QueryDigest, err = hash.File(queryPath); err != nil {
		log.WithError(err).Warn("Failed to fingerprint query file")
	}
	if summary.CompletionDigest, err = hash.File(completionPath); err != nil {
		log.WithError(err).Warn("Failed to fingerprint completion file")
	}

	if metricsFile != "" {
		m := metrics.New()
		m.RecordRun(summary)
		if err := m.WriteFile(metricsFile); err != nil {
			log.WithError(err).Error("Failed to write metrics")
			return err
		}
	}
	if publish {
		if err := a.publishSummary(ctx, cfg.Bus, log, summary); err != nil {
			return err
		}
	}
	if record {
		if err := a.recordSummary(ctx, cfg.History, log, summary); err != nil {
			return err
		}
	}

	return nil
}

func (a *app) publishSummary(ctx context.Context, cfg config.BusConfig, log *logger.Logger, summary *evaluation.RunSummary) error {
	b, err := a.newBus(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create event bus: %w", err)
	}
	defer b.Close()

	event := bus.NewEvent(bus.TypeEvalCompleted, eventSource, summary)
	event.CorrelationID = summary.ID

	if err := b.Publish(ctx, cfg.Topic, event); err != nil {
		log.WithError(err).Error("Failed to publish run summary", "topic", cfg.Topic)
		return err
	}

	log.Info("Published run summary", "topic", cfg.Topic, "event_id", event.ID)
	return nil
}

func (a *app) recordSummary(ctx context.Context, cfg config.HistoryConfig, log *logger.Logger, summary *evaluation.RunSummary) error {
	store, err := a.newStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open run history: %w", err)
	}
	defer store.Close()

	if err := store.Save(ctx, summary); err != nil {
		log.WithError(err).Error("Failed to record run summary")
		return err
	}

	log.Info("Recorded run summary")
	return nil
}

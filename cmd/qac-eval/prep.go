package main

import (
	"github.com/spf13/cobra"

	"github.com/ricesearch/qac-eval/internal/prep"
)

func (a *app) normalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize",
		Short: "Lowercase queries and drop lines with non-printable characters",
		Long: `Read queries from stdin and write normalized queries to stdout.

Trailing whitespace is trimmed. Lines containing anything outside printable
ASCII are dropped; the rest are lowercased.`,
		Example: `  qac-eval normalize < raw.txt > queries.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			stats, err := prep.Normalize(cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				log.WithError(err).Error("Normalize failed")
				return err
			}

			log.Info("Normalized queries",
				"read", stats.Read,
				"written", stats.Written,
				"skipped", stats.Skipped(),
			)
			return nil
		},
	}
}

func (a *app) splitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split",
		Short: "Shuffle queries into train, validation and test files",
		Long: `Read queries from stdin, shuffle them with a fixed seed and write
<prefix>_train.txt, <prefix>_val.txt and <prefix>_test.txt.`,
		Example: `  qac-eval split --output data/aol < queries.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			opts := prep.SplitOptions{
				Seed:  cfg.Prep.Seed,
				Valid: cfg.Prep.Valid,
				Test:  cfg.Prep.Test,
			}
			opts.OutputPrefix, _ = cmd.Flags().GetString("output")
			if cmd.Flags().Changed("seed") {
				opts.Seed, _ = cmd.Flags().GetInt64("seed")
			}
			if cmd.Flags().Changed("valid") {
				opts.Valid, _ = cmd.Flags().GetFloat64("valid")
			}
			if cmd.Flags().Changed("test") {
				opts.Test, _ = cmd.Flags().GetFloat64("test")
			}

			parts, err := prep.Split(cmd.Context(), cmd.InOrStdin(), opts)
			if err != nil {
				log.WithError(err).Error("Split failed")
				return err
			}

			train, valid, test := prep.Paths(opts.OutputPrefix)
			log.Info("Split queries",
				"train", len(parts.Train),
				"valid", len(parts.Valid),
				"test", len(parts.Test),
				"train_file", train,
				"valid_file", valid,
				"test_file", test,
			)
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "output file prefix")
	cmd.Flags().Int64("seed", 0, "shuffle seed (default from config)")
	cmd.Flags().Float64("valid", 0, "validation fraction (default from config)")
	cmd.Flags().Float64("test", 0, "test fraction (default from config)")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func (a *app) prefixCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefix",
		Short: "Draw a random prefix for each query",
		Long: `Read queries from stdin and write "prefix<TAB>query" lines to stdout.

Prefix lengths are drawn uniformly from --min-prefix up to the query length
minus --min-suffix plus one, capped at the full query. Queries shorter than
both bounds together are skipped.`,
		Example: `  qac-eval prefix --seed 7 < test.txt > prefixes.tsv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			opts := prep.PrefixOptions{
				Seed:         cfg.Prep.Seed,
				MinPrefixLen: cfg.Prep.MinPrefixLen,
				MinSuffixLen: cfg.Prep.MinSuffixLen,
			}
			if cmd.Flags().Changed("seed") {
				opts.Seed, _ = cmd.Flags().GetInt64("seed")
			}
			if cmd.Flags().Changed("min-prefix") {
				opts.MinPrefixLen, _ = cmd.Flags().GetInt("min-prefix")
			}
			if cmd.Flags().Changed("min-suffix") {
				opts.MinSuffixLen, _ = cmd.Flags().GetInt("min-suffix")
			}

			stats, err := prep.ExtractPrefixes(cmd.InOrStdin(), cmd.OutOrStdout(), opts)
			if err != nil {
				log.WithError(err).Error("Prefix extraction failed")
				return err
			}

			log.Info("Extracted prefixes",
				"read", stats.Read,
				"written", stats.Written,
				"skipped", stats.Skipped(),
			)
			return nil
		},
	}

	cmd.Flags().Int64("seed", 0, "random seed (default from config)")
	cmd.Flags().Int("min-prefix", 0, "minimum prefix length (default from config)")
	cmd.Flags().Int("min-suffix", 0, "minimum cut suffix length (default from config)")

	return cmd
}

package main

import (
	"fmt"

	"github.com/ethpandaops/toolchainbench/pkg/indexstore"
	"github.com/spf13/cobra"
)

var indexResultsDir string

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Load result files into the SQL sample index",
	Long: `Scan a results directory and replace each host's rows in the configured
sqlite or postgres index with the raw samples and sizes from its result file.`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().StringVar(&indexResultsDir, "results-dir", "",
		"Results directory to index (defaults to benchmark.results_dir)")
}

func runIndex(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Index.Validate(); err != nil {
		return fmt.Errorf("validating index: %w", err)
	}

	dir := indexResultsDir
	if dir == "" {
		dir = cfg.Benchmark.ResultsDir
	}

	ctx := cmd.Context()

	s := indexstore.NewStore(log, &cfg.Index.Database)
	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("starting index store: %w", err)
	}

	defer func() {
		if err := s.Stop(); err != nil {
			log.WithError(err).Warn("Failed to stop index store")
		}
	}()

	idx := indexstore.NewIndexer(log, s, dir, cfg.Index.Interval)

	if err := idx.RunPass(ctx); err != nil {
		return fmt.Errorf("indexing %s: %w", dir, err)
	}

	repos, err := s.ListRepos(ctx)
	if err != nil {
		return err
	}

	log.WithField("repos", len(repos)).Info("Index updated")

	return nil
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ethpandaops/toolchainbench/pkg/fsutil"
	"github.com/ethpandaops/toolchainbench/pkg/repo"
	"github.com/ethpandaops/toolchainbench/pkg/report"
	"github.com/ethpandaops/toolchainbench/pkg/store"
	"github.com/spf13/cobra"
)

var (
	statusResultFile string
	statusOutput     string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a markdown progress report for this host",
	Long: `Load this host's result file, merge in the repo catalog and print which
toolchain versions are complete or outstanding per repo, along with the
recorded artifact sizes.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusResultFile, "result-file", "",
		"Report on this result file instead of the current host's")
	statusCmd.Flags().StringVar(&statusOutput, "output", "",
		"Write the report to this file instead of stdout")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	maxVersion, err := cfg.Benchmark.MaxToolchainVersion()
	if err != nil {
		return err
	}

	result, source, err := loadStatusResult(cmd.Context(), cfg.Benchmark.ReposFile, cfg.Benchmark.ResultsDir)
	if err != nil {
		return err
	}

	md := report.GenerateStatusMarkdown(result, report.Options{
		Source:     source,
		MaxVersion: maxVersion,
	})

	if statusOutput == "" {
		fmt.Print(md)

		return nil
	}

	owner, err := fsutil.ParseOwner(cfg.Global.ResultsOwner)
	if err != nil {
		return fmt.Errorf("parsing results_owner: %w", err)
	}

	if err := fsutil.WriteFileAtomic(statusOutput, []byte(md), 0o644, owner); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	log.WithField("path", statusOutput).Info("Status report written")

	return nil
}

// loadStatusResult reads --result-file as is, or the current host's file
// merged with the catalog so repos without results show up as outstanding.
func loadStatusResult(ctx context.Context, reposFile, resultsDir string) (*store.ResultFile, string, error) {
	if statusResultFile != "" {
		result, err := store.ReadResultFile(statusResultFile)
		if err != nil {
			return nil, "", err
		}

		return result, statusResultFile, nil
	}

	catalog, err := repo.LoadCatalog(log, reposFile)
	if err != nil {
		return nil, "", err
	}

	host, err := store.DetectHost(ctx)
	if err != nil {
		return nil, "", err
	}

	s := store.New(log, &store.Config{
		Dir: resultsDir,
		DetectHost: func(context.Context) (store.HostIdentity, error) {
			return host, nil
		},
	})

	path, err := s.Path(ctx)
	if err != nil {
		return nil, "", err
	}

	profiles, err := s.Load(ctx, catalog)
	if err != nil {
		return nil, "", err
	}

	if _, err := os.Stat(path); err != nil {
		path = ""
	}

	return &store.ResultFile{SystemInfo: host, Profiles: profiles}, path, nil
}

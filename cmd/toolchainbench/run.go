package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethpandaops/toolchainbench/pkg/benchmark"
	"github.com/ethpandaops/toolchainbench/pkg/cargo"
	"github.com/ethpandaops/toolchainbench/pkg/config"
	"github.com/ethpandaops/toolchainbench/pkg/cpufreq"
	"github.com/ethpandaops/toolchainbench/pkg/fsutil"
	"github.com/ethpandaops/toolchainbench/pkg/indexstore"
	"github.com/ethpandaops/toolchainbench/pkg/repo"
	"github.com/ethpandaops/toolchainbench/pkg/runner"
	"github.com/ethpandaops/toolchainbench/pkg/store"
	"github.com/ethpandaops/toolchainbench/pkg/toolchain"
	"github.com/ethpandaops/toolchainbench/pkg/upload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	runRepetitions int
	runWorkDir     string
	runReposFile   string
	runResultsDir  string
	runLimitRepos  []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Profile every pending toolchain version of every repo",
	Long: `Clone each catalog repo, switch through the toolchain catalog and record
clean, incremental and patched build durations plus artifact sizes. Results
are persisted after each repo; an interrupted sweep resumes on the next run.`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVar(&runRepetitions, "repetitions", 0,
		"Samples per bucket (overrides benchmark.repetitions)")
	runCmd.Flags().StringVar(&runWorkDir, "work-dir", "",
		"Checkout directory (overrides global.work_dir)")
	runCmd.Flags().StringVar(&runReposFile, "repos-file", "",
		"Repo catalog file (overrides benchmark.repos_file)")
	runCmd.Flags().StringVar(&runResultsDir, "results-dir", "",
		"Result file directory (overrides benchmark.results_dir)")
	runCmd.Flags().StringSliceVar(&runLimitRepos, "limit-repo", nil,
		"Limit the sweep to specific repo names (comma-separated or repeated)")
}

// applyRunFlags lets explicit flags win over the config file.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("repetitions") {
		cfg.Benchmark.Repetitions = runRepetitions
	}

	if flags.Changed("work-dir") {
		cfg.Global.WorkDir = runWorkDir
	}

	if flags.Changed("repos-file") {
		cfg.Benchmark.ReposFile = runReposFile
	}

	if flags.Changed("results-dir") {
		cfg.Benchmark.ResultsDir = runResultsDir
	}

	if flags.Changed("limit-repo") {
		cfg.Benchmark.LimitRepos = runLimitRepos
	}
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	applyRunFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	catalog, err := repo.LoadCatalog(log, cfg.Benchmark.ReposFile)
	if err != nil {
		return err
	}

	maxVersion, err := cfg.Benchmark.MaxToolchainVersion()
	if err != nil {
		return err
	}

	owner, err := fsutil.ParseOwner(cfg.Global.ResultsOwner)
	if err != nil {
		return fmt.Errorf("parsing results_owner: %w", err)
	}

	// Setup context with signal handling.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
	}()

	hooks, cleanup, err := buildPersistHooks(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	cargoRunner := cargo.NewRunner(log, cfg.Tools.Cargo)

	r := runner.NewRunner(
		log,
		&runner.Config{
			WorkDir:    cfg.Global.WorkDir,
			Catalog:    catalog,
			LimitRepos: cfg.Benchmark.LimitRepos,
			MaxVersion: maxVersion,
			GitBinary:  cfg.Tools.Git,
		},
		store.New(log, &store.Config{
			Dir:   cfg.Benchmark.ResultsDir,
			Owner: owner,
		}),
		toolchain.NewRustup(log, cfg.Tools.Rustup),
		benchmark.NewProtocol(log, cargoRunner, &benchmark.Config{
			Repetitions: cfg.Benchmark.Repetitions,
			Warmup:      cfg.Benchmark.Warmup,
		}),
		benchmark.NewSizeProbe(log, cargoRunner),
		hooks...,
	)

	log.WithFields(logrus.Fields{
		"repos":       len(catalog),
		"repetitions": cfg.Benchmark.Repetitions,
		"max_version": maxVersion.String(),
		"results_dir": cfg.Benchmark.ResultsDir,
	}).Info("Starting sweep")

	cpuCfg := &cpufreq.Config{
		Governor:   cfg.Benchmark.CPU.Governor,
		TurboBoost: cfg.Benchmark.CPU.TurboBoost,
	}

	if cpuCfg.IsSet() {
		pinner := cpufreq.NewPinner(log, cfg.Benchmark.CPU.SysfsPath)
		if err := pinner.Apply(cpuCfg); err != nil {
			return fmt.Errorf("applying CPU settings: %w", err)
		}

		defer func() {
			if err := pinner.Restore(); err != nil {
				log.WithError(err).Warn("Failed to restore CPU settings")
			}
		}()
	}

	if err := r.Start(ctx); err != nil {
		return fmt.Errorf("starting runner: %w", err)
	}

	defer func() {
		if err := r.Stop(); err != nil {
			log.WithError(err).Warn("Failed to stop runner")
		}
	}()

	if err := r.RunAll(ctx); err != nil {
		return fmt.Errorf("running sweep: %w", err)
	}

	return nil
}

// buildPersistHooks wires the optional S3 upload and index sync after each
// persist. The returned cleanup releases what the hooks hold open.
func buildPersistHooks(ctx context.Context, cfg *config.Config) ([]runner.PersistHook, func(), error) {
	var (
		hooks    []runner.PersistHook
		cleanups []func()
	)

	cleanup := func() {
		for _, fn := range cleanups {
			fn()
		}
	}

	if cfg.Upload.S3.Enabled {
		uploader, err := upload.NewS3Uploader(log, &cfg.Upload.S3)
		if err != nil {
			return nil, cleanup, fmt.Errorf("creating S3 uploader: %w", err)
		}

		if err := uploader.Preflight(ctx); err != nil {
			return nil, cleanup, fmt.Errorf("S3 preflight check failed: %w", err)
		}

		hooks = append(hooks, func(ctx context.Context, path string) error {
			return uploader.UploadResultFiles(ctx, []string{path})
		})
	}

	if cfg.Index.Enabled {
		idx := indexstore.NewStore(log, &cfg.Index.Database)
		if err := idx.Start(ctx); err != nil {
			return nil, cleanup, fmt.Errorf("starting index store: %w", err)
		}

		cleanups = append(cleanups, func() {
			if err := idx.Stop(); err != nil {
				log.WithError(err).Warn("Failed to stop index store")
			}
		})

		hooks = append(hooks, func(ctx context.Context, path string) error {
			return indexstore.SyncResultFile(ctx, idx, path)
		})
	}

	return hooks, cleanup, nil
}

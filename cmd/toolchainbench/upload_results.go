package main

import (
	"fmt"

	"github.com/ethpandaops/toolchainbench/pkg/store"
	"github.com/ethpandaops/toolchainbench/pkg/upload"
	"github.com/spf13/cobra"
)

var (
	uploadMethod    string
	uploadResultDir string
)

var uploadResultsCmd = &cobra.Command{
	Use:   "upload-results",
	Short: "Upload result files to remote storage",
	Long:  `Upload every host result file in a results directory to S3-compatible storage using the config file settings.`,
	RunE:  runUploadResults,
}

func init() {
	rootCmd.AddCommand(uploadResultsCmd)
	uploadResultsCmd.Flags().StringVar(&uploadMethod, "method", "s3",
		"Upload method (currently only \"s3\")")
	uploadResultsCmd.Flags().StringVar(&uploadResultDir, "results-dir", "",
		"Results directory to upload (defaults to benchmark.results_dir)")
}

func runUploadResults(cmd *cobra.Command, _ []string) error {
	if cfgFile == "" {
		return fmt.Errorf("config file is required (use --config)")
	}

	if uploadMethod != "s3" {
		return fmt.Errorf("unsupported method %q (only \"s3\" is supported)", uploadMethod)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if !cfg.Upload.S3.Enabled {
		return fmt.Errorf("S3 upload is not enabled in config")
	}

	if err := cfg.Upload.S3.Validate(); err != nil {
		return fmt.Errorf("validating upload.s3: %w", err)
	}

	dir := uploadResultDir
	if dir == "" {
		dir = cfg.Benchmark.ResultsDir
	}

	paths, err := store.ListResultFiles(dir)
	if err != nil {
		return err
	}

	if len(paths) == 0 {
		return fmt.Errorf("no result files found in %s", dir)
	}

	uploader, err := upload.NewS3Uploader(log, &cfg.Upload.S3)
	if err != nil {
		return fmt.Errorf("creating S3 uploader: %w", err)
	}

	ctx := cmd.Context()

	if err := uploader.Preflight(ctx); err != nil {
		return fmt.Errorf("S3 preflight check failed: %w", err)
	}

	log.WithField("dir", dir).Info("Uploading results")

	if err := uploader.UploadResultFiles(ctx, paths); err != nil {
		return fmt.Errorf("uploading results: %w", err)
	}

	log.Info("Upload completed successfully")

	return nil
}

package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ethpandaops/toolchainbench/pkg/fsutil"
	"github.com/ethpandaops/toolchainbench/pkg/toolchain"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes environment overrides, e.g.
	// TOOLCHAINBENCH_BENCHMARK_REPETITIONS.
	EnvPrefix = "TOOLCHAINBENCH"

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultWorkDir is where repos are checked out.
	DefaultWorkDir = "./work"

	// DefaultRepetitions is the number of samples per bucket.
	DefaultRepetitions = 5

	// DefaultReposFile is the repo catalog path.
	DefaultReposFile = "./repos.yaml"

	// DefaultResultsDir is the default directory for result files.
	DefaultResultsDir = "./results"
)

// Config is the root configuration for toolchainbench.
type Config struct {
	Global    GlobalConfig    `yaml:"global" mapstructure:"global"`
	Benchmark BenchmarkConfig `yaml:"benchmark" mapstructure:"benchmark"`
	Tools     ToolsConfig     `yaml:"tools" mapstructure:"tools"`
	Upload    UploadConfig    `yaml:"upload" mapstructure:"upload"`
	Index     IndexConfig     `yaml:"index" mapstructure:"index"`
	API       APIConfig       `yaml:"api" mapstructure:"api"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
	WorkDir  string `yaml:"work_dir" mapstructure:"work_dir"`
	// ResultsOwner is an optional "UID:GID" applied to written results.
	ResultsOwner string `yaml:"results_owner,omitempty" mapstructure:"results_owner"`
}

// BenchmarkConfig contains sweep settings.
type BenchmarkConfig struct {
	Repetitions int      `yaml:"repetitions" mapstructure:"repetitions"`
	ReposFile   string   `yaml:"repos_file" mapstructure:"repos_file"`
	ResultsDir  string   `yaml:"results_dir" mapstructure:"results_dir"`
	Warmup      bool     `yaml:"warmup" mapstructure:"warmup"`
	LimitRepos  []string `yaml:"limit_repos,omitempty" mapstructure:"limit_repos"`
	// MaxVersion caps the sweep, e.g. "1.50.0". Empty means no cap.
	MaxVersion string    `yaml:"max_version,omitempty" mapstructure:"max_version"`
	CPU        CPUConfig `yaml:"cpu,omitempty" mapstructure:"cpu"`
}

// CPUConfig pins CPU frequency behaviour while a sweep runs. Needs write
// access to sysfs.
type CPUConfig struct {
	Governor   string `yaml:"governor,omitempty" mapstructure:"governor"`
	TurboBoost *bool  `yaml:"turbo_boost,omitempty" mapstructure:"turbo_boost"`
	SysfsPath  string `yaml:"sysfs_path,omitempty" mapstructure:"sysfs_path"`
}

// ToolsConfig names the external binaries.
type ToolsConfig struct {
	Cargo  string `yaml:"cargo" mapstructure:"cargo"`
	Rustup string `yaml:"rustup" mapstructure:"rustup"`
	Git    string `yaml:"git" mapstructure:"git"`
}

// UploadConfig configures publishing of result files.
type UploadConfig struct {
	S3 S3UploadConfig `yaml:"s3" mapstructure:"s3"`
}

// S3UploadConfig contains S3-compatible storage settings.
type S3UploadConfig struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Prefix          string `yaml:"prefix,omitempty" mapstructure:"prefix"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
	StorageClass    string `yaml:"storage_class,omitempty" mapstructure:"storage_class"`
	ACL             string `yaml:"acl,omitempty" mapstructure:"acl"`
	// RequestsPerSecond paces PutObject calls. Zero disables pacing.
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty" mapstructure:"requests_per_second"`
	Concurrency       int     `yaml:"concurrency,omitempty" mapstructure:"concurrency"`
}

// Load reads the configuration. path may be empty, in which case only
// defaults and environment overrides apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so environment overrides apply even
// when the key is absent from the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("global.log_level", DefaultLogLevel)
	v.SetDefault("global.work_dir", DefaultWorkDir)
	v.SetDefault("global.results_owner", "")

	v.SetDefault("benchmark.repetitions", DefaultRepetitions)
	v.SetDefault("benchmark.repos_file", DefaultReposFile)
	v.SetDefault("benchmark.results_dir", DefaultResultsDir)
	v.SetDefault("benchmark.warmup", true)
	v.SetDefault("benchmark.limit_repos", []string{})
	v.SetDefault("benchmark.max_version", "")
	v.SetDefault("benchmark.cpu.governor", "")
	v.SetDefault("benchmark.cpu.sysfs_path", "/sys/devices/system/cpu")

	v.SetDefault("tools.cargo", "cargo")
	v.SetDefault("tools.rustup", "rustup")
	v.SetDefault("tools.git", "git")

	v.SetDefault("upload.s3.enabled", false)
	v.SetDefault("upload.s3.endpoint_url", "")
	v.SetDefault("upload.s3.region", "us-east-1")
	v.SetDefault("upload.s3.bucket", "")
	v.SetDefault("upload.s3.prefix", "toolchainbench")
	v.SetDefault("upload.s3.access_key_id", "")
	v.SetDefault("upload.s3.secret_access_key", "")
	v.SetDefault("upload.s3.force_path_style", false)
	v.SetDefault("upload.s3.storage_class", "")
	v.SetDefault("upload.s3.acl", "")
	v.SetDefault("upload.s3.requests_per_second", 0)
	v.SetDefault("upload.s3.concurrency", 4)

	setIndexDefaults(v)
	setAPIDefaults(v)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Global.LogLevel); err != nil {
		return fmt.Errorf("global.log_level: %w", err)
	}

	if c.Global.WorkDir == "" {
		return fmt.Errorf("global.work_dir is required")
	}

	if _, err := fsutil.ParseOwner(c.Global.ResultsOwner); err != nil {
		return fmt.Errorf("global.results_owner: %w", err)
	}

	if err := c.Benchmark.Validate(); err != nil {
		return fmt.Errorf("benchmark: %w", err)
	}

	if err := c.Upload.S3.Validate(); err != nil {
		return fmt.Errorf("upload.s3: %w", err)
	}

	if err := c.Index.Validate(); err != nil {
		return fmt.Errorf("index: %w", err)
	}

	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}

// Validate checks the benchmark settings.
func (b *BenchmarkConfig) Validate() error {
	if b.Repetitions < 0 {
		return fmt.Errorf("repetitions must not be negative, got %d", b.Repetitions)
	}

	if b.ReposFile == "" {
		return fmt.Errorf("repos_file is required")
	}

	if b.ResultsDir == "" {
		return fmt.Errorf("results_dir is required")
	}

	if _, err := b.MaxToolchainVersion(); err != nil {
		return err
	}

	return nil
}

// MaxToolchainVersion parses MaxVersion. It returns toolchain.Last when
// no cap is set.
func (b *BenchmarkConfig) MaxToolchainVersion() (toolchain.Version, error) {
	if b.MaxVersion == "" {
		return toolchain.Last, nil
	}

	v, err := toolchain.Parse(b.MaxVersion)
	if err != nil {
		return 0, fmt.Errorf("max_version: %w", err)
	}

	return v, nil
}

// Validate checks the S3 upload settings when enabled.
func (s *S3UploadConfig) Validate() error {
	if !s.Enabled {
		return nil
	}

	if s.Bucket == "" {
		return fmt.Errorf("bucket is required when enabled")
	}

	if s.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", s.Concurrency)
	}

	if s.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}

	return nil
}

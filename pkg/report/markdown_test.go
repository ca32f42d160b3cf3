package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ethpandaops/toolchainbench/pkg/cargo"
	"github.com/ethpandaops/toolchainbench/pkg/profile"
	"github.com/ethpandaops/toolchainbench/pkg/repo"
	"github.com/ethpandaops/toolchainbench/pkg/store"
	"github.com/ethpandaops/toolchainbench/pkg/toolchain"
)

func fullyProfile(record *profile.Record, v toolchain.Version, debug, release cargo.Bytes) {
	samples := make(profile.Samples)

	for _, cm := range cargo.CompilerModes() {
		for _, pm := range cargo.ProfileModes() {
			samples.Add(profile.SampleKey{CompilerMode: cm, ProfileMode: pm}, 100)
		}
	}

	record.AddCompileTimes(v, samples)
	record.AddOutputSize(v, cargo.CompilerModeDebug, debug)
	record.AddOutputSize(v, cargo.CompilerModeRelease, release)
}

func TestFormatVersionRanges(t *testing.T) {
	tests := []struct {
		name     string
		versions []toolchain.Version
		expected string
	}{
		{
			name:     "empty",
			expected: "-",
		},
		{
			name:     "single",
			versions: []toolchain.Version{toolchain.V1_45},
			expected: "1.45.0",
		},
		{
			name:     "one range",
			versions: []toolchain.Version{toolchain.V1_45, toolchain.V1_46, toolchain.V1_47},
			expected: "1.45.0-1.47.0",
		},
		{
			name: "gaps",
			versions: []toolchain.Version{
				toolchain.V1_34, toolchain.V1_35, toolchain.V1_40, toolchain.V1_52, toolchain.V1_53,
			},
			expected: "1.34.0-1.35.0, 1.40.0, 1.52.0-1.53.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatVersionRanges(tt.versions))
		})
	}
}

func TestGenerateStatusMarkdown(t *testing.T) {
	hello := profile.NewRecord(repo.Descriptor{Name: "helloworld", MinVersion: toolchain.V1_50})
	fullyProfile(hello, toolchain.V1_50, 512, 1500000)
	fullyProfile(hello, toolchain.V1_51, 512, 1500000)

	// Partial results keep a version outstanding.
	hello.AddCompileTimes(toolchain.V1_52, profile.Samples{
		{CompilerMode: cargo.CompilerModeCheck, ProfileMode: cargo.ProfileModeClean}: {100},
	})

	untouched := profile.NewRecord(repo.Descriptor{Name: "ripgrep", MinVersion: toolchain.V1_53})

	result := &store.ResultFile{
		SystemInfo: store.HostIdentity{NumCores: 16, NumPhysicalCores: 8, CPUModel: "Test CPU"},
		Profiles:   profile.Profiles{"helloworld": hello, "ripgrep": untouched},
	}

	md := GenerateStatusMarkdown(result, Options{Source: "results/results-16-abc.json"})

	assert.True(t, strings.HasPrefix(md, "# Toolchain Benchmark Status\n"))
	assert.Contains(t, md, "| Result File | `results/results-16-abc.json` |")
	assert.Contains(t, md, "| CPU Model | Test CPU |")
	assert.Contains(t, md, "| Logical Cores | 16 |")
	assert.Contains(t, md, "| helloworld | 1.50.0 | 1.50.0-1.51.0 | 1.52.0-1.53.0 | 1.52.0 |")
	assert.Contains(t, md, "| ripgrep | 1.53.0 | - | 1.53.0 | 1.53.0 |")
	assert.Contains(t, md, "## Artifact Sizes: helloworld")
	assert.Contains(t, md, "| 1.50.0 | 512B | 1.5MB |")
	assert.NotContains(t, md, "## Artifact Sizes: ripgrep")

	t.Run("max version caps outstanding", func(t *testing.T) {
		md := GenerateStatusMarkdown(result, Options{MaxVersion: toolchain.V1_52})

		assert.Contains(t, md, "| helloworld | 1.50.0 | 1.50.0-1.51.0 | 1.52.0 | 1.52.0 |")
		assert.Contains(t, md, "| ripgrep | 1.53.0 | - | - | - |")
		assert.NotContains(t, md, "Result File")
	})

	t.Run("no repos", func(t *testing.T) {
		md := GenerateStatusMarkdown(&store.ResultFile{Profiles: profile.Profiles{}}, Options{})

		assert.Contains(t, md, "No repos recorded.")
		assert.Contains(t, md, "| CPU Model | - |")
	})
}

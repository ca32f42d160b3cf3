// Package report renders a host's result file as a markdown progress
// summary.
package report

import (
	"fmt"
	"strings"

	"github.com/docker/go-units"
	"github.com/ethpandaops/toolchainbench/pkg/cargo"
	"github.com/ethpandaops/toolchainbench/pkg/profile"
	"github.com/ethpandaops/toolchainbench/pkg/store"
	"github.com/ethpandaops/toolchainbench/pkg/toolchain"
)

// Options controls what the report considers outstanding.
type Options struct {
	// Source is shown as the result file location.
	Source string
	// MaxVersion caps outstanding versions. Zero means the newest
	// catalog version.
	MaxVersion toolchain.Version
}

// GenerateStatusMarkdown renders progress for every repo in result:
// completed and outstanding versions plus recorded artifact sizes.
func GenerateStatusMarkdown(result *store.ResultFile, opts Options) string {
	maxVersion := opts.MaxVersion
	if !maxVersion.Valid() {
		maxVersion = toolchain.Last
	}

	var sb strings.Builder

	sb.Grow(4096)

	sb.WriteString("# Toolchain Benchmark Status\n\n")
	writeHost(&sb, result.SystemInfo, opts.Source)
	writeProgress(&sb, result.Profiles, maxVersion)

	for _, name := range result.Profiles.Names() {
		writeSizes(&sb, name, result.Profiles[name])
	}

	return sb.String()
}

func writeHost(sb *strings.Builder, host store.HostIdentity, source string) {
	sb.WriteString("## Host\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|---|---|\n")

	if source != "" {
		fmt.Fprintf(sb, "| Result File | `%s` |\n", source)
	}

	fmt.Fprintf(sb, "| CPU Model | %s |\n", orDash(host.CPUModel))
	fmt.Fprintf(sb, "| Logical Cores | %d |\n", host.NumCores)
	fmt.Fprintf(sb, "| Physical Cores | %d |\n", host.NumPhysicalCores)
	sb.WriteByte('\n')
}

func writeProgress(sb *strings.Builder, profiles profile.Profiles, maxVersion toolchain.Version) {
	sb.WriteString("## Progress\n\n")

	if len(profiles) == 0 {
		sb.WriteString("No repos recorded.\n\n")

		return
	}

	sb.WriteString("| Repo | Min Version | Completed | Outstanding | Next |\n")
	sb.WriteString("|---|---|---|---|---|\n")

	for _, name := range profiles.Names() {
		record := profiles[name]
		outstanding := capVersions(record.VersionsToProfile(), maxVersion)

		next := "-"
		if len(outstanding) > 0 {
			next = outstanding[0].String()
		}

		fmt.Fprintf(sb, "| %s | %s | %s | %s | %s |\n",
			name,
			minVersion(record),
			FormatVersionRanges(record.CompletedVersions()),
			FormatVersionRanges(outstanding),
			next,
		)
	}

	sb.WriteByte('\n')
}

func writeSizes(sb *strings.Builder, name string, record *profile.Record) {
	if len(record.OutputSizes) == 0 {
		return
	}

	fmt.Fprintf(sb, "## Artifact Sizes: %s\n\n", name)
	sb.WriteString("| Version | Debug | Release |\n")
	sb.WriteString("|---|---|---|\n")

	for _, v := range toolchain.All() {
		debug, hasDebug := record.OutputSizes[profile.SizeKey{Version: v, CompilerMode: cargo.CompilerModeDebug}]
		release, hasRelease := record.OutputSizes[profile.SizeKey{Version: v, CompilerMode: cargo.CompilerModeRelease}]

		if !hasDebug && !hasRelease {
			continue
		}

		fmt.Fprintf(sb, "| %s | %s | %s |\n", v, formatSize(debug, hasDebug), formatSize(release, hasRelease))
	}

	sb.WriteByte('\n')
}

func capVersions(versions []toolchain.Version, maxVersion toolchain.Version) []toolchain.Version {
	capped := versions[:0:0]

	for _, v := range versions {
		if v <= maxVersion {
			capped = append(capped, v)
		}
	}

	return capped
}

func minVersion(record *profile.Record) string {
	if !record.Repo.MinVersion.Valid() {
		return toolchain.First.String()
	}

	return record.Repo.MinVersion.String()
}

// FormatVersionRanges collapses consecutive catalog versions, e.g.
// "1.45.0-1.47.0, 1.50.0". Versions must be in catalog order.
func FormatVersionRanges(versions []toolchain.Version) string {
	if len(versions) == 0 {
		return "-"
	}

	parts := make([]string, 0, len(versions))
	start, prev := versions[0], versions[0]

	flush := func() {
		if start == prev {
			parts = append(parts, start.String())
		} else {
			parts = append(parts, start.String()+"-"+prev.String())
		}
	}

	for _, v := range versions[1:] {
		if v == prev+1 {
			prev = v

			continue
		}

		flush()

		start, prev = v, v
	}

	flush()

	return strings.Join(parts, ", ")
}

func formatSize(size cargo.Bytes, ok bool) string {
	if !ok {
		return "-"
	}

	return units.HumanSize(float64(size))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}

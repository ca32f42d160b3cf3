package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/shirou/gopsutil/v4/cpu"
)

// HostIdentity describes the machine measurements were taken on. Results
// from different hosts are kept in different files.
type HostIdentity struct {
	NumCores         int    `json:"num_cores"`
	NumPhysicalCores int    `json:"num_physical_cores"`
	CPUModel         string `json:"cpu_model"`
}

// HostDetector returns the identity of the current machine.
type HostDetector func(ctx context.Context) (HostIdentity, error)

// DetectHost reads core counts and the CPU model name.
func DetectHost(ctx context.Context) (HostIdentity, error) {
	logical, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return HostIdentity{}, fmt.Errorf("counting logical cores: %w", err)
	}

	physical, err := cpu.CountsWithContext(ctx, false)
	if err != nil {
		return HostIdentity{}, fmt.Errorf("counting physical cores: %w", err)
	}

	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return HostIdentity{}, fmt.Errorf("reading cpu info: %w", err)
	}

	var model string
	if len(infos) > 0 {
		model = strings.TrimSpace(infos[0].ModelName)
	}

	return HostIdentity{
		NumCores:         logical,
		NumPhysicalCores: physical,
		CPUModel:         model,
	}, nil
}

// Hash is a stable hash of all identity fields.
func (h HostIdentity) Hash() uint64 {
	d := xxhash.New()

	_, _ = d.WriteString(strconv.Itoa(h.NumCores))
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(strconv.Itoa(h.NumPhysicalCores))
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(h.CPUModel)

	return d.Sum64()
}

// FileName is the result file name for this host,
// results-<num_cores>-<hash>.json.
func (h HostIdentity) FileName() string {
	return fmt.Sprintf("results-%d-%016x.json", h.NumCores, h.Hash())
}

package cpufreq

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultSysfsCPUPath is the default sysfs path for CPU frequency control.
const DefaultSysfsCPUPath = "/sys/devices/system/cpu"

type boostControl string

const (
	boostIntel boostControl = "intel"
	boostAMD   boostControl = "amd"
	boostNone  boostControl = "none"
)

// onlineCPUs returns the online CPU IDs, falling back to present CPUs.
func onlineCPUs(basePath string) ([]int, error) {
	data, err := os.ReadFile(filepath.Join(basePath, "online"))
	if err != nil {
		data, err = os.ReadFile(filepath.Join(basePath, "present"))
		if err != nil {
			return nil, fmt.Errorf("reading CPU online/present: %w", err)
		}
	}

	return parseCPURange(strings.TrimSpace(string(data)))
}

// parseCPURange parses CPU lists like "0-7" or "0,2,4-6".
func parseCPURange(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}

	var cpus []int

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)

		lo, hi, isRange := strings.Cut(part, "-")
		if !isRange {
			hi = lo
		}

		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid CPU list %q: %w", s, err)
		}

		end, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return nil, fmt.Errorf("invalid CPU list %q: %w", s, err)
		}

		if end < start {
			return nil, fmt.Errorf("invalid CPU range %q", part)
		}

		for id := start; id <= end; id++ {
			cpus = append(cpus, id)
		}
	}

	return cpus, nil
}

func governorPath(basePath string, cpuID int) string {
	return filepath.Join(basePath, fmt.Sprintf("cpu%d", cpuID), "cpufreq", "scaling_governor")
}

func availableGovernorsPath(basePath string, cpuID int) string {
	return filepath.Join(basePath, fmt.Sprintf("cpu%d", cpuID), "cpufreq", "scaling_available_governors")
}

func intelNoTurboPath(basePath string) string {
	return filepath.Join(basePath, "intel_pstate", "no_turbo")
}

func amdBoostPath(basePath string) string {
	return filepath.Join(basePath, "cpufreq", "boost")
}

func readSysfs(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	return strings.TrimSpace(string(data)), nil
}

func writeSysfs(path, value string) error {
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return nil
}

func detectBoostControl(basePath string) boostControl {
	if _, err := os.Stat(intelNoTurboPath(basePath)); err == nil {
		return boostIntel
	}

	if _, err := os.Stat(amdBoostPath(basePath)); err == nil {
		return boostAMD
	}

	return boostNone
}

// boostFile returns the control file and the value that enables or
// disables turbo boost. Intel inverts the flag.
func boostFile(basePath string, control boostControl, enabled bool) (string, string, error) {
	switch control {
	case boostIntel:
		if enabled {
			return intelNoTurboPath(basePath), "0", nil
		}

		return intelNoTurboPath(basePath), "1", nil
	case boostAMD:
		if enabled {
			return amdBoostPath(basePath), "1", nil
		}

		return amdBoostPath(basePath), "0", nil
	default:
		return "", "", fmt.Errorf("turbo boost control not available")
	}
}

func validateGovernor(basePath string, cpuID int, governor string) error {
	available, err := readSysfs(availableGovernorsPath(basePath, cpuID))
	if err != nil {
		return err
	}

	for _, g := range strings.Fields(available) {
		if g == governor {
			return nil
		}
	}

	return fmt.Errorf("governor %q not available (have: %s)", governor, available)
}

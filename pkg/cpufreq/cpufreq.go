// Package cpufreq pins the CPU governor and turbo boost for the duration of
// a sweep and restores the previous settings afterwards.
package cpufreq

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Config holds the CPU settings applied during a sweep.
type Config struct {
	// Governor is applied to every online CPU. Empty leaves it unchanged.
	Governor string
	// TurboBoost: nil leaves it unchanged.
	TurboBoost *bool
}

// IsSet reports whether cfg changes anything.
func (c *Config) IsSet() bool {
	return c != nil && (c.Governor != "" || c.TurboBoost != nil)
}

// Pinner applies CPU settings and restores the captured originals.
type Pinner interface {
	Apply(cfg *Config) error
	Restore() error
}

// Ensure interface compliance.
var _ Pinner = (*pinner)(nil)

type pinner struct {
	log      logrus.FieldLogger
	basePath string

	mu        sync.Mutex
	governors map[int]string
	boost     *savedBoost
}

type savedBoost struct {
	path  string
	value string
}

// NewPinner creates a Pinner over basePath, normally DefaultSysfsCPUPath.
func NewPinner(log logrus.FieldLogger, basePath string) Pinner {
	return &pinner{
		log:      log.WithField("component", "cpufreq"),
		basePath: basePath,
	}
}

// Apply captures the current settings once and applies cfg. On failure
// whatever was already changed is rolled back.
func (p *pinner) Apply(cfg *Config) error {
	if !cfg.IsSet() {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.apply(cfg); err != nil {
		if restoreErr := p.restore(); restoreErr != nil {
			p.log.WithError(restoreErr).Warn("Failed to roll back CPU settings")
		}

		return err
	}

	return nil
}

func (p *pinner) apply(cfg *Config) error {
	if cfg.Governor != "" {
		cpus, err := onlineCPUs(p.basePath)
		if err != nil {
			return err
		}

		if p.governors == nil {
			p.governors = make(map[int]string, len(cpus))
		}

		for _, id := range cpus {
			if err := validateGovernor(p.basePath, id, cfg.Governor); err != nil {
				return fmt.Errorf("cpu%d: %w", id, err)
			}

			current, err := readSysfs(governorPath(p.basePath, id))
			if err != nil {
				return err
			}

			if _, saved := p.governors[id]; !saved {
				p.governors[id] = current
			}

			if err := writeSysfs(governorPath(p.basePath, id), cfg.Governor); err != nil {
				return err
			}
		}

		p.log.WithFields(logrus.Fields{
			"governor": cfg.Governor,
			"cpus":     len(cpus),
		}).Info("Pinned CPU governor")
	}

	if cfg.TurboBoost != nil {
		path, value, err := boostFile(p.basePath, detectBoostControl(p.basePath), *cfg.TurboBoost)
		if err != nil {
			return err
		}

		current, err := readSysfs(path)
		if err != nil {
			return err
		}

		if p.boost == nil {
			p.boost = &savedBoost{path: path, value: current}
		}

		if err := writeSysfs(path, value); err != nil {
			return err
		}

		p.log.WithField("enabled", *cfg.TurboBoost).Info("Set turbo boost")
	}

	return nil
}

// Restore writes back the settings captured by Apply.
func (p *pinner) Restore() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.restore()
}

func (p *pinner) restore() error {
	if p.governors == nil && p.boost == nil {
		return nil
	}

	var failed int

	if p.boost != nil {
		if err := writeSysfs(p.boost.path, p.boost.value); err != nil {
			p.log.WithError(err).Warn("Failed to restore turbo boost")

			failed++
		}
	}

	for id, governor := range p.governors {
		if err := writeSysfs(governorPath(p.basePath, id), governor); err != nil {
			p.log.WithError(err).WithField("cpu", id).Warn("Failed to restore governor")

			failed++
		}
	}

	p.governors = nil
	p.boost = nil

	if failed > 0 {
		return fmt.Errorf("restoring CPU settings: %d writes failed", failed)
	}

	p.log.Info("CPU settings restored")

	return nil
}

package cpufreq

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSysfs lays out a minimal cpufreq tree with two CPUs.
func fakeSysfs(t *testing.T, boost string) string {
	t.Helper()

	base := t.TempDir()

	write := func(rel, content string) {
		path := filepath.Join(base, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content+"\n"), 0o644))
	}

	write("online", "0-1")

	for _, cpu := range []string{"cpu0", "cpu1"} {
		write(filepath.Join(cpu, "cpufreq", "scaling_governor"), "powersave")
		write(filepath.Join(cpu, "cpufreq", "scaling_available_governors"), "performance powersave")
	}

	switch boost {
	case "intel":
		write(filepath.Join("intel_pstate", "no_turbo"), "0")
	case "amd":
		write(filepath.Join("cpufreq", "boost"), "1")
	}

	return base
}

func read(t *testing.T, path string) string {
	t.Helper()

	value, err := readSysfs(path)
	require.NoError(t, err)

	return value
}

func TestParseCPURange(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []int
		wantErr  bool
	}{
		{name: "empty", input: ""},
		{name: "single", input: "3", expected: []int{3}},
		{name: "range", input: "0-3", expected: []int{0, 1, 2, 3}},
		{name: "mixed", input: "0,2,4-6", expected: []int{0, 2, 4, 5, 6}},
		{name: "reversed", input: "5-2", wantErr: true},
		{name: "garbage", input: "a-b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpus, err := parseCPURange(tt.input)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, cpus)
		})
	}
}

func TestPinner_ApplyRestore(t *testing.T) {
	disabled := false

	tests := []struct {
		name      string
		boost     string
		boostPath string
		pinned    string
		original  string
	}{
		{name: "intel", boost: "intel", boostPath: "intel_pstate/no_turbo", pinned: "1", original: "0"},
		{name: "amd", boost: "amd", boostPath: "cpufreq/boost", pinned: "0", original: "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := fakeSysfs(t, tt.boost)
			p := NewPinner(logrus.New(), base)

			require.NoError(t, p.Apply(&Config{Governor: "performance", TurboBoost: &disabled}))

			assert.Equal(t, "performance", read(t, governorPath(base, 0)))
			assert.Equal(t, "performance", read(t, governorPath(base, 1)))
			assert.Equal(t, tt.pinned, read(t, filepath.Join(base, tt.boostPath)))

			require.NoError(t, p.Restore())

			assert.Equal(t, "powersave", read(t, governorPath(base, 0)))
			assert.Equal(t, "powersave", read(t, governorPath(base, 1)))
			assert.Equal(t, tt.original, read(t, filepath.Join(base, tt.boostPath)))

			// A second restore has nothing to do.
			require.NoError(t, p.Restore())
		})
	}
}

func TestPinner_Apply(t *testing.T) {
	enabled := true

	t.Run("empty config is a no-op", func(t *testing.T) {
		p := NewPinner(logrus.New(), filepath.Join(t.TempDir(), "missing"))
		require.NoError(t, p.Apply(&Config{}))
		require.NoError(t, p.Apply(nil))
	})

	t.Run("unknown governor", func(t *testing.T) {
		base := fakeSysfs(t, "")
		p := NewPinner(logrus.New(), base)

		require.Error(t, p.Apply(&Config{Governor: "ondemand"}))
		assert.Equal(t, "powersave", read(t, governorPath(base, 0)))
	})

	t.Run("missing boost control rolls back governor", func(t *testing.T) {
		base := fakeSysfs(t, "")
		p := NewPinner(logrus.New(), base)

		require.Error(t, p.Apply(&Config{Governor: "performance", TurboBoost: &enabled}))
		assert.Equal(t, "powersave", read(t, governorPath(base, 0)))
		assert.Equal(t, "powersave", read(t, governorPath(base, 1)))
	})
}

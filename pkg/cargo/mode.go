package cargo

import "fmt"

// CompilerMode selects the cargo invocation.
type CompilerMode string

const (
	CompilerModeCheck   CompilerMode = "Check"
	CompilerModeDebug   CompilerMode = "Debug"
	CompilerModeRelease CompilerMode = "Release"
)

// CompilerModes returns all compiler modes in measurement order.
func CompilerModes() []CompilerMode {
	return []CompilerMode{CompilerModeCheck, CompilerModeDebug, CompilerModeRelease}
}

// ParseCompilerMode parses the storage form of a compiler mode.
func ParseCompilerMode(s string) (CompilerMode, error) {
	switch m := CompilerMode(s); m {
	case CompilerModeCheck, CompilerModeDebug, CompilerModeRelease:
		return m, nil
	default:
		return "", fmt.Errorf("unknown compiler mode %q", s)
	}
}

// Args returns the cargo arguments for the mode.
func (m CompilerMode) Args() []string {
	switch m {
	case CompilerModeCheck:
		return []string{"check"}
	case CompilerModeDebug:
		return []string{"build"}
	case CompilerModeRelease:
		return []string{"build", "--release"}
	default:
		return nil
	}
}

// ProducesArtifact reports whether a build in this mode links an output binary.
func (m CompilerMode) ProducesArtifact() bool {
	return m == CompilerModeDebug || m == CompilerModeRelease
}

// ProfileMode selects the state preparation before a timed build.
type ProfileMode string

const (
	ProfileModeClean            ProfileMode = "Clean"
	ProfileModeIncremental      ProfileMode = "Incremental"
	ProfileModePatchIncremental ProfileMode = "PatchIncremental"
)

// ProfileModes returns all profile modes in stage order.
func ProfileModes() []ProfileMode {
	return []ProfileMode{ProfileModeClean, ProfileModeIncremental, ProfileModePatchIncremental}
}

// ParseProfileMode parses the storage form of a profile mode.
func ParseProfileMode(s string) (ProfileMode, error) {
	switch m := ProfileMode(s); m {
	case ProfileModeClean, ProfileModeIncremental, ProfileModePatchIncremental:
		return m, nil
	default:
		return "", fmt.Errorf("unknown profile mode %q", s)
	}
}

// Milliseconds is a measured build duration.
type Milliseconds uint64

// Bytes is a measured artifact size.
type Bytes uint64

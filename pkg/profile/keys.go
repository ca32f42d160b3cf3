package profile

import (
	"fmt"
	"strings"

	"github.com/ethpandaops/toolchainbench/pkg/cargo"
	"github.com/ethpandaops/toolchainbench/pkg/toolchain"
)

const keySeparator = ","

// CompileTimeKey identifies one bucket of duration samples.
// Its text form is "<version>,<compiler mode>,<profile mode>".
type CompileTimeKey struct {
	Version      toolchain.Version
	CompilerMode cargo.CompilerMode
	ProfileMode  cargo.ProfileMode
}

// MarshalText implements encoding.TextMarshaler.
func (k CompileTimeKey) MarshalText() ([]byte, error) {
	if _, err := cargo.ParseCompilerMode(string(k.CompilerMode)); err != nil {
		return nil, err
	}

	if _, err := cargo.ParseProfileMode(string(k.ProfileMode)); err != nil {
		return nil, err
	}

	version, err := k.Version.MarshalText()
	if err != nil {
		return nil, err
	}

	return []byte(strings.Join([]string{
		string(version), string(k.CompilerMode), string(k.ProfileMode),
	}, keySeparator)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *CompileTimeKey) UnmarshalText(text []byte) error {
	parts := strings.Split(string(text), keySeparator)
	if len(parts) != 3 {
		return fmt.Errorf("compile time key %q: want 3 fields, got %d", text, len(parts))
	}

	version, err := toolchain.Parse(parts[0])
	if err != nil {
		return fmt.Errorf("compile time key %q: %w", text, err)
	}

	compilerMode, err := cargo.ParseCompilerMode(parts[1])
	if err != nil {
		return fmt.Errorf("compile time key %q: %w", text, err)
	}

	profileMode, err := cargo.ParseProfileMode(parts[2])
	if err != nil {
		return fmt.Errorf("compile time key %q: %w", text, err)
	}

	*k = CompileTimeKey{Version: version, CompilerMode: compilerMode, ProfileMode: profileMode}

	return nil
}

func (k CompileTimeKey) String() string {
	return strings.Join([]string{k.Version.String(), string(k.CompilerMode), string(k.ProfileMode)}, keySeparator)
}

// SizeKey identifies one artifact size. Its text form is
// "<version>,<compiler mode>".
type SizeKey struct {
	Version      toolchain.Version
	CompilerMode cargo.CompilerMode
}

// MarshalText implements encoding.TextMarshaler.
func (k SizeKey) MarshalText() ([]byte, error) {
	if !k.CompilerMode.ProducesArtifact() {
		return nil, fmt.Errorf("compiler mode %q has no output size", k.CompilerMode)
	}

	version, err := k.Version.MarshalText()
	if err != nil {
		return nil, err
	}

	return []byte(string(version) + keySeparator + string(k.CompilerMode)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *SizeKey) UnmarshalText(text []byte) error {
	parts := strings.Split(string(text), keySeparator)
	if len(parts) != 2 {
		return fmt.Errorf("output size key %q: want 2 fields, got %d", text, len(parts))
	}

	version, err := toolchain.Parse(parts[0])
	if err != nil {
		return fmt.Errorf("output size key %q: %w", text, err)
	}

	mode, err := cargo.ParseCompilerMode(parts[1])
	if err != nil {
		return fmt.Errorf("output size key %q: %w", text, err)
	}

	if !mode.ProducesArtifact() {
		return fmt.Errorf("output size key %q: compiler mode has no output size", text)
	}

	*k = SizeKey{Version: version, CompilerMode: mode}

	return nil
}

func (k SizeKey) String() string {
	return k.Version.String() + keySeparator + string(k.CompilerMode)
}

// SampleKey identifies a bucket within one version's measurement.
type SampleKey struct {
	CompilerMode cargo.CompilerMode
	ProfileMode  cargo.ProfileMode
}

// Samples holds the durations one protocol run collected for a version.
type Samples map[SampleKey][]cargo.Milliseconds

// Add appends a sample to the bucket for key.
func (s Samples) Add(key SampleKey, ms cargo.Milliseconds) {
	s[key] = append(s[key], ms)
}

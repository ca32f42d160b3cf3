package toolchain

import (
	"fmt"
	"strconv"
	"strings"
)

// Version identifies a stable Rust toolchain release by its minor number.
// Versions are totally ordered by ordinal.
type Version int

const (
	V1_34 Version = 34 + iota
	V1_35
	V1_36
	V1_37
	V1_38
	V1_39
	V1_40
	V1_41
	V1_42
	V1_43
	V1_44
	V1_45
	V1_46
	V1_47
	V1_48
	V1_49
	V1_50
	V1_51
	V1_52
	V1_53
)

const (
	// First is the oldest toolchain in the catalog.
	First = V1_34

	// Last is the newest toolchain in the catalog.
	Last = V1_53
)

// All returns every catalog version in ascending order.
func All() []Version {
	versions := make([]Version, 0, int(Last-First)+1)
	for v := First; v <= Last; v++ {
		versions = append(versions, v)
	}

	return versions
}

// Between returns the catalog versions in [lo, hi], in order.
func Between(lo, hi Version) []Version {
	versions := make([]Version, 0, int(Last-First)+1)

	for _, v := range All() {
		if v >= lo && v <= hi {
			versions = append(versions, v)
		}
	}

	return versions
}

// Valid reports whether v is part of the catalog.
func (v Version) Valid() bool {
	return v >= First && v <= Last
}

// String returns the canonical form, e.g. "1.45.0".
func (v Version) String() string {
	return fmt.Sprintf("1.%d.0", int(v))
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("version ordinal %d outside catalog", int(v))
	}

	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}

	*v = parsed

	return nil
}

// Parse accepts the canonical "1.45.0" form and the legacy "V1_45" spelling
// used by older catalog files.
func Parse(s string) (Version, error) {
	s = strings.TrimSpace(s)

	var minor string

	switch {
	case strings.HasPrefix(s, "V1_"):
		minor = strings.TrimPrefix(s, "V1_")
	case strings.HasPrefix(s, "1."):
		parts := strings.Split(s, ".")
		if len(parts) != 3 || parts[2] != "0" {
			return 0, fmt.Errorf("unknown version %q", s)
		}

		minor = parts[1]
	default:
		return 0, fmt.Errorf("unknown version %q", s)
	}

	n, err := strconv.Atoi(minor)
	if err != nil {
		return 0, fmt.Errorf("unknown version %q: %w", s, err)
	}

	v := Version(n)
	if !v.Valid() {
		return 0, fmt.Errorf("version %q outside catalog %s..%s", s, First, Last)
	}

	return v, nil
}

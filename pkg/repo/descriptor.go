package repo

import (
	"github.com/ethpandaops/toolchainbench/pkg/toolchain"
)

// Descriptor is the static configuration of one sample project.
type Descriptor struct {
	// Name is unique within a catalog and names the checkout directory.
	Name         string `json:"name" mapstructure:"name"`
	URL          string `json:"url" mapstructure:"url"`
	SubDirectory string `json:"sub_directory" mapstructure:"sub_directory"`
	// TouchFile is relative to SubDirectory. Incremental builds bump its
	// mtime; patch-incremental builds edit it.
	TouchFile string `json:"touch_file" mapstructure:"touch_file"`
	// Output is the artifact file name under target/{debug,release}.
	Output     string            `json:"output" mapstructure:"output"`
	CommitHash string            `json:"commit_hash" mapstructure:"commit_hash"`
	MinVersion toolchain.Version `json:"min_version" mapstructure:"min_version"`
}

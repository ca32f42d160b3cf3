// Package profile holds the accumulated measurements for each repo and
// decides which toolchain versions still need work.
package profile

import (
	"sort"

	"github.com/ethpandaops/toolchainbench/pkg/cargo"
	"github.com/ethpandaops/toolchainbench/pkg/repo"
	"github.com/ethpandaops/toolchainbench/pkg/toolchain"
)

// Record is everything measured for one repo on one host. Entries are only
// ever added or replaced, never pruned.
type Record struct {
	Repo         repo.Descriptor                          `json:"repo"`
	CompileTimes map[CompileTimeKey][]cargo.Milliseconds `json:"compile_times"`
	OutputSizes  map[SizeKey]cargo.Bytes                  `json:"output_sizes"`
}

// NewRecord creates an empty record for desc.
func NewRecord(desc repo.Descriptor) *Record {
	return &Record{
		Repo:         desc,
		CompileTimes: make(map[CompileTimeKey][]cargo.Milliseconds),
		OutputSizes:  make(map[SizeKey]cargo.Bytes),
	}
}

// SetRepo replaces the descriptor and keeps all measurements.
func (r *Record) SetRepo(desc repo.Descriptor) {
	r.Repo = desc
}

// AddCompileTimes stores the buckets in samples under version v. Buckets
// absent from samples are left untouched.
func (r *Record) AddCompileTimes(v toolchain.Version, samples Samples) {
	if r.CompileTimes == nil {
		r.CompileTimes = make(map[CompileTimeKey][]cargo.Milliseconds)
	}

	for key, values := range samples {
		bucket := make([]cargo.Milliseconds, len(values))
		copy(bucket, values)

		r.CompileTimes[CompileTimeKey{
			Version:      v,
			CompilerMode: key.CompilerMode,
			ProfileMode:  key.ProfileMode,
		}] = bucket
	}
}

// AddOutputSize records the artifact size for v built in mode.
func (r *Record) AddOutputSize(v toolchain.Version, mode cargo.CompilerMode, size cargo.Bytes) {
	if r.OutputSizes == nil {
		r.OutputSizes = make(map[SizeKey]cargo.Bytes)
	}

	r.OutputSizes[SizeKey{Version: v, CompilerMode: mode}] = size
}

// IsFullyProfiled reports whether every compile-time bucket and every
// output size exists for v. An empty bucket counts as present.
func (r *Record) IsFullyProfiled(v toolchain.Version) bool {
	for _, cm := range cargo.CompilerModes() {
		for _, pm := range cargo.ProfileModes() {
			if _, ok := r.CompileTimes[CompileTimeKey{Version: v, CompilerMode: cm, ProfileMode: pm}]; !ok {
				return false
			}
		}

		if !cm.ProducesArtifact() {
			continue
		}

		if _, ok := r.OutputSizes[SizeKey{Version: v, CompilerMode: cm}]; !ok {
			return false
		}
	}

	return true
}

// VersionsToProfile returns the catalog versions from the repo's minimum
// version onwards that are not fully profiled, in catalog order.
func (r *Record) VersionsToProfile() []toolchain.Version {
	minVersion := r.Repo.MinVersion
	if !minVersion.Valid() {
		minVersion = toolchain.First
	}

	var pending []toolchain.Version

	for _, v := range toolchain.Between(minVersion, toolchain.Last) {
		if !r.IsFullyProfiled(v) {
			pending = append(pending, v)
		}
	}

	return pending
}

// CompletedVersions returns the fully profiled versions in catalog order.
func (r *Record) CompletedVersions() []toolchain.Version {
	var done []toolchain.Version

	for _, v := range toolchain.All() {
		if r.IsFullyProfiled(v) {
			done = append(done, v)
		}
	}

	return done
}

// Profiles maps repo names to their records.
type Profiles map[string]*Record

// Merge folds the catalog into p. Known repos get the fresh descriptor,
// new repos get an empty record. Repos missing from the catalog are kept.
func (p Profiles) Merge(catalog []repo.Descriptor) {
	for _, desc := range catalog {
		if record, ok := p[desc.Name]; ok && record != nil {
			record.SetRepo(desc)

			continue
		}

		p[desc.Name] = NewRecord(desc)
	}
}

// Names returns the repo names in lexical order.
func (p Profiles) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

package indexstore

import "time"

// Host is one machine whose result file has been indexed.
type Host struct {
	ID               uint   `gorm:"primaryKey"`
	HostHash         string `gorm:"not null;uniqueIndex"`
	NumCores         int
	NumPhysicalCores int
	CPUModel         string
	ResultFile       string
	IndexedAt        time.Time
}

// Sample is a single raw build duration.
type Sample struct {
	ID           uint   `gorm:"primaryKey"`
	HostHash     string `gorm:"not null;uniqueIndex:idx_samples_key"`
	Repo         string `gorm:"not null;uniqueIndex:idx_samples_key;index"`
	Version      string `gorm:"not null;uniqueIndex:idx_samples_key"`
	CompilerMode string `gorm:"not null;uniqueIndex:idx_samples_key"`
	ProfileMode  string `gorm:"not null;uniqueIndex:idx_samples_key"`
	// Repetition is the zero-based position within its bucket.
	Repetition int `gorm:"not null;uniqueIndex:idx_samples_key"`
	DurationMs uint64
}

// OutputSize is the artifact size of one build.
type OutputSize struct {
	ID           uint   `gorm:"primaryKey"`
	HostHash     string `gorm:"not null;uniqueIndex:idx_sizes_key"`
	Repo         string `gorm:"not null;uniqueIndex:idx_sizes_key;index"`
	Version      string `gorm:"not null;uniqueIndex:idx_sizes_key"`
	CompilerMode string `gorm:"not null;uniqueIndex:idx_sizes_key"`
	Bytes        uint64
}

// Filter narrows sample and size queries. Empty fields match everything.
type Filter struct {
	HostHash     string
	Repo         string
	Version      string
	CompilerMode string
	ProfileMode  string
}

package options

import (
	"runtime"
)

// HashAlgorithm names the content digest used to confirm duplicates
type HashAlgorithm string

const (
	HashSHA256 HashAlgorithm = "sha256"
	HashSHA512 HashAlgorithm = "sha512"
)

// MinBufferSize is the smallest read buffer accepted for hashing
const MinBufferSize = 4 * 1024

// DefaultIgnoreFile is the gitignore-style file looked up in a scan root
const DefaultIgnoreFile = ".dfindignore"

// ScanOptions configures traversal and duplicate confirmation
type ScanOptions struct {
	TraversalWorkers int           // Concurrent directory listings per BFS level
	HashWorkers      int           // Concurrent file hashes within a size bucket (1 = sequential)
	BufferSize       int           // Read buffer size for streaming file content
	Algorithm        HashAlgorithm // Content digest algorithm
	IgnoreFile       string        // Gitignore-style file looked up in the scan root
}

// KeepStrategy selects which file of a group survives a bulk selection
type KeepStrategy string

const (
	KeepAll    KeepStrategy = "none"
	KeepNewest KeepStrategy = "newest"
	KeepOldest KeepStrategy = "oldest"
)

// DeleteOptions configures removal of files that were not kept
type DeleteOptions struct {
	DryRun   bool   // Report what would be removed without touching the filesystem
	TrashDir string // Move files here instead of deleting them (empty = delete)
}

// DefaultScanOptions returns sensible defaults for duplicate scans
func DefaultScanOptions() ScanOptions {
	// I/O bound listing: CPU cores * 2, bounded
	workers := min(max(runtime.NumCPU()*2, 4), 32)

	return ScanOptions{
		TraversalWorkers: workers,
		HashWorkers:      1,
		BufferSize:       64 * 1024,
		Algorithm:        HashSHA256,
		IgnoreFile:       DefaultIgnoreFile,
	}
}

// Normalize clamps out-of-range values back to usable ones
func (o ScanOptions) Normalize() ScanOptions {
	defaults := DefaultScanOptions()
	if o.TraversalWorkers <= 0 {
		o.TraversalWorkers = defaults.TraversalWorkers
	}
	if o.HashWorkers <= 0 {
		o.HashWorkers = 1
	}
	if o.BufferSize < MinBufferSize {
		o.BufferSize = defaults.BufferSize
	}
	if o.Algorithm == "" {
		o.Algorithm = defaults.Algorithm
	}
	return o
}

// DefaultDeleteOptions returns sensible defaults for delete operations
func DefaultDeleteOptions() DeleteOptions {
	return DeleteOptions{
		DryRun: false,
	}
}

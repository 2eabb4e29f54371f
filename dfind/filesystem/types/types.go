package types

import (
	"bytes"
	"encoding/hex"
	"sort"
	"time"

	"github.com/google/uuid"
)

// FileRecord describes one regular, non-empty file found during traversal.
// Records are values and are never mutated after creation.
type FileRecord struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// SizeBucket holds every record sharing one byte size
type SizeBucket struct {
	Size  int64        `json:"size"`
	Files []FileRecord `json:"files"`
}

// SizeIndex maps a byte size to the records of that size
type SizeIndex map[int64][]FileRecord

// Add appends a record to the bucket keyed by its own size
func (si SizeIndex) Add(rec FileRecord) {
	si[rec.Size] = append(si[rec.Size], rec)
}

// Count returns the number of records across all buckets
func (si SizeIndex) Count() int {
	n := 0
	for _, files := range si {
		n += len(files)
	}
	return n
}

// Candidates drops single-member buckets and returns the rest, largest size first
func (si SizeIndex) Candidates() []SizeBucket {
	buckets := make([]SizeBucket, 0, len(si))
	for size, files := range si {
		if len(files) < 2 {
			continue
		}
		buckets = append(buckets, SizeBucket{Size: size, Files: files})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Size > buckets[j].Size })
	return buckets
}

// Digest is a fixed-length content hash
type Digest []byte

// String returns the hex encoding of the digest
func (d Digest) String() string {
	return hex.EncodeToString(d)
}

// Equal reports whether two digests are byte-identical
func (d Digest) Equal(other Digest) bool {
	return bytes.Equal(d, other)
}

// MarshalText encodes the digest as hex
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// HashIndex groups the records of one size bucket by digest.
// It is reused across buckets: Reset clears it without releasing the map.
type HashIndex struct {
	order  []string
	groups map[string][]FileRecord
	digest map[string]Digest
}

// NewHashIndex creates an empty hash index
func NewHashIndex() *HashIndex {
	return &HashIndex{
		groups: make(map[string][]FileRecord),
		digest: make(map[string]Digest),
	}
}

// Add files a record under its digest
func (hi *HashIndex) Add(d Digest, rec FileRecord) {
	key := string(d)
	if _, ok := hi.groups[key]; !ok {
		hi.order = append(hi.order, key)
		hi.digest[key] = d
	}
	hi.groups[key] = append(hi.groups[key], rec)
}

// Duplicates returns every digest group with at least two records
func (hi *HashIndex) Duplicates(size int64) []DuplicateGroup {
	var out []DuplicateGroup
	for _, key := range hi.order {
		files := hi.groups[key]
		if len(files) < 2 {
			continue
		}
		group := DuplicateGroup{
			Size:   size,
			Digest: hi.digest[key],
			Files:  append([]FileRecord(nil), files...),
		}
		sort.Slice(group.Files, func(i, j int) bool { return group.Files[i].Path < group.Files[j].Path })
		out = append(out, group)
	}
	return out
}

// Reset empties the index for the next bucket
func (hi *HashIndex) Reset() {
	clear(hi.groups)
	clear(hi.digest)
	hi.order = hi.order[:0]
}

// DuplicateGroup is a set of at least two files with equal size and digest
type DuplicateGroup struct {
	Size   int64        `json:"size"`
	Digest Digest       `json:"digest"`
	Files  []FileRecord `json:"files"`
}

// Len returns the number of files in the group
func (g DuplicateGroup) Len() int {
	return len(g.Files)
}

// Paths returns the member paths in group order
func (g DuplicateGroup) Paths() []string {
	paths := make([]string, len(g.Files))
	for i, f := range g.Files {
		paths[i] = f.Path
	}
	return paths
}

// Reclaimable is the space freed by keeping exactly one copy
func (g DuplicateGroup) Reclaimable() int64 {
	if len(g.Files) < 2 {
		return 0
	}
	return g.Size * int64(len(g.Files)-1)
}

// SortGroups orders groups by reclaimable bytes, then by first path
func SortGroups(groups []DuplicateGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		ri, rj := groups[i].Reclaimable(), groups[j].Reclaimable()
		if ri != rj {
			return ri > rj
		}
		return groups[i].Files[0].Path < groups[j].Files[0].Path
	})
}

// ScanProgress is a point-in-time snapshot of the hashing phase
type ScanProgress struct {
	Processed   int    `json:"processed"`
	Total       int    `json:"total"`
	CurrentFile string `json:"current_file"`
}

// Fraction returns Processed/Total, treating an empty phase as total 1
func (p ScanProgress) Fraction() float64 {
	return float64(p.Processed) / float64(max(p.Total, 1))
}

// Done reports whether every file of the phase has been attempted
func (p ScanProgress) Done() bool {
	return p.Processed >= p.Total
}

// ProgressFunc receives progress snapshots; it must not block
type ProgressFunc func(ScanProgress)

// Scan stages recorded for skipped entries
const (
	StageTraverse = "traverse"
	StageHash     = "hash"
)

// SkippedFile records an entry dropped because of an I/O error
type SkippedFile struct {
	Path  string `json:"path"`
	Stage string `json:"stage"`
	Err   string `json:"error"`
}

// ScanStats summarizes one scan
type ScanStats struct {
	FilesFound       int           `json:"files_found"`
	Candidates       int           `json:"candidates"`
	Hashed           int           `json:"hashed"`
	Failed           int           `json:"failed"`
	Groups           int           `json:"groups"`
	DuplicateFiles   int           `json:"duplicate_files"`
	ReclaimableBytes int64         `json:"reclaimable_bytes"`
	Duration         time.Duration `json:"duration"`
}

// ScanResult is the complete outcome of a scan
type ScanResult struct {
	ID           uuid.UUID        `json:"id"`
	Root         string           `json:"root"`
	RootResolved bool             `json:"root_resolved"`
	RootErr      error            `json:"-"`
	Groups       []DuplicateGroup `json:"groups"`
	Skipped      []SkippedFile    `json:"skipped,omitempty"`
	Stats        ScanStats        `json:"stats"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   time.Time        `json:"finished_at"`
}

// Summarize fills the group-derived statistics
func (r *ScanResult) Summarize() {
	r.Stats.Groups = len(r.Groups)
	r.Stats.DuplicateFiles = 0
	r.Stats.ReclaimableBytes = 0
	for _, g := range r.Groups {
		r.Stats.DuplicateFiles += g.Len()
		r.Stats.ReclaimableBytes += g.Reclaimable()
	}
}

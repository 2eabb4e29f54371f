package indexing

import (
	"sync"

	roaring "github.com/RoaringBitmap/roaring"
)

// Ordinal is the position of a candidate file in the flattened bucket order
// of one confirmation pass. Ordinals are small and contiguous so they pack
// densely into roaring containers.
type Ordinal = uint32

// CandidateBitmaps tracks which candidate ordinals were hashed and which
// failed. Every attempted ordinal lands in exactly one of the two sets.
type CandidateBitmaps struct {
	mu     sync.Mutex
	hashed *roaring.Bitmap
	failed *roaring.Bitmap
}

func NewCandidateBitmaps() *CandidateBitmaps {
	return &CandidateBitmaps{
		hashed: roaring.New(),
		failed: roaring.New(),
	}
}

func (cb *CandidateBitmaps) MarkHashed(ord Ordinal) {
	cb.mu.Lock()
	cb.hashed.Add(ord)
	cb.mu.Unlock()
}

func (cb *CandidateBitmaps) MarkFailed(ord Ordinal) {
	cb.mu.Lock()
	cb.failed.Add(ord)
	cb.mu.Unlock()
}

// HashedCount returns the number of ordinals hashed successfully
func (cb *CandidateBitmaps) HashedCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return int(cb.hashed.GetCardinality())
}

// FailedCount returns the number of ordinals whose hash failed
func (cb *CandidateBitmaps) FailedCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return int(cb.failed.GetCardinality())
}

// Attempted returns the union of hashed and failed ordinals
func (cb *CandidateBitmaps) Attempted() *roaring.Bitmap {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return roaring.Or(cb.hashed, cb.failed)
}

// Pending returns the ordinals in [0, total) that were never attempted.
// A completed pass has an empty pending set.
func (cb *CandidateBitmaps) Pending(total int) *roaring.Bitmap {
	all := roaring.New()
	if total > 0 {
		all.AddRange(0, uint64(total))
	}
	all.AndNot(cb.Attempted())
	return all
}

// IsFailed reports whether ord failed to hash
func (cb *CandidateBitmaps) IsFailed(ord Ordinal) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failed.Contains(ord)
}

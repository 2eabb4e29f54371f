package filesystem

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/hashing"
	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/options"
	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/types"
	"github.com/ZanzyTHEbar/dupe-finder/dfind/indexing"

	"github.com/sourcegraph/conc/pool"
)

// Confirmer hashes the members of same-size buckets and keeps the
// digest groups with at least two members.
type Confirmer struct {
	hasher hashing.Hasher
	opts   options.ScanOptions
}

// Confirmation is the complete output of one confirmation pass
type Confirmation struct {
	Groups  []types.DuplicateGroup
	Skipped []types.SkippedFile
	Bitmaps *indexing.CandidateBitmaps
	Total   int
}

// NewConfirmer creates a confirmer that hashes through hasher
func NewConfirmer(hasher hashing.Hasher, opts options.ScanOptions) *Confirmer {
	return &Confirmer{
		hasher: hasher,
		opts:   opts.Normalize(),
	}
}

// Confirm returns the confirmed duplicate groups of buckets. onProgress, if
// set, is called once per file attempted. On cancellation partial groups
// are discarded and ctx.Err() is returned.
func (c *Confirmer) Confirm(ctx context.Context, buckets []types.SizeBucket, onProgress types.ProgressFunc) ([]types.DuplicateGroup, error) {
	conf, err := c.ConfirmDetailed(ctx, buckets, onProgress)
	if err != nil {
		return nil, err
	}
	return conf.Groups, nil
}

// ConfirmDetailed is Confirm plus skipped files and per-candidate bitmaps
func (c *Confirmer) ConfirmDetailed(ctx context.Context, buckets []types.SizeBucket, onProgress types.ProgressFunc) (*Confirmation, error) {
	total := 0
	for _, b := range buckets {
		total += len(b.Files)
	}

	conf := &Confirmation{
		Groups:  make([]types.DuplicateGroup, 0),
		Bitmaps: indexing.NewCandidateBitmaps(),
		Total:   total,
	}
	emitter := &progressEmitter{total: total, onProgress: onProgress}

	arena := types.NewHashIndex()
	base := 0

	for _, bucket := range buckets {
		arena.Reset()

		var err error
		if c.opts.HashWorkers > 1 {
			err = c.hashBucketParallel(ctx, bucket, base, arena, conf, emitter)
		} else {
			err = c.hashBucket(ctx, bucket, base, arena, conf, emitter)
		}
		if err != nil {
			slog.Debug("Confirmation cancelled",
				"processed", emitter.processed,
				"total", total)
			return nil, err
		}

		conf.Groups = append(conf.Groups, arena.Duplicates(bucket.Size)...)
		base += len(bucket.Files)
	}

	slog.Debug("Confirmation completed",
		"candidates", total,
		"groups", len(conf.Groups),
		"failed", conf.Bitmaps.FailedCount())

	return conf, nil
}

// hashBucket is the sequential path: one file at a time in bucket order
func (c *Confirmer) hashBucket(ctx context.Context, bucket types.SizeBucket, base int, arena *types.HashIndex, conf *Confirmation, emitter *progressEmitter) error {
	for i, rec := range bucket.Files {
		if err := ctx.Err(); err != nil {
			return err
		}

		digest, err := c.hasher.Hash(rec.Path)
		c.record(rec, indexing.Ordinal(base+i), digest, err, arena, conf)
		emitter.attempted(rec.Path)
	}
	return nil
}

// hashBucketParallel hashes the bucket on a bounded pool. Digests are filed
// into the arena in bucket order after the pool drains, so group contents
// do not depend on scheduling.
func (c *Confirmer) hashBucketParallel(ctx context.Context, bucket types.SizeBucket, base int, arena *types.HashIndex, conf *Confirmation, emitter *progressEmitter) error {
	digests := make([]types.Digest, len(bucket.Files))
	errs := make([]error, len(bucket.Files))

	p := pool.New().WithMaxGoroutines(c.opts.HashWorkers).WithContext(ctx)
	for i, rec := range bucket.Files {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			digests[i], errs[i] = c.hasher.Hash(rec.Path)
			emitter.attempted(rec.Path)
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for i, rec := range bucket.Files {
		c.record(rec, indexing.Ordinal(base+i), digests[i], errs[i], arena, conf)
	}
	return nil
}

func (c *Confirmer) record(rec types.FileRecord, ord indexing.Ordinal, digest types.Digest, err error, arena *types.HashIndex, conf *Confirmation) {
	if err != nil {
		slog.Warn("Failed to hash file",
			"path", rec.Path,
			"error", err)
		conf.Bitmaps.MarkFailed(ord)
		conf.Skipped = append(conf.Skipped, types.SkippedFile{
			Path:  rec.Path,
			Stage: types.StageHash,
			Err:   err.Error(),
		})
		return
	}
	conf.Bitmaps.MarkHashed(ord)
	arena.Add(digest, rec)
}

// progressEmitter serializes progress events so Processed grows by exactly
// one per attempt even when several workers finish at once.
type progressEmitter struct {
	mu         sync.Mutex
	processed  int
	total      int
	onProgress types.ProgressFunc
}

func (e *progressEmitter) attempted(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.processed++
	if e.onProgress != nil {
		e.onProgress(types.ScanProgress{
			Processed:   e.processed,
			Total:       e.total,
			CurrentFile: path,
		})
	}
}

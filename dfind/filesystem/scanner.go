package filesystem

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/common"
	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/hashing"
	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/options"
	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/types"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Scanner finds duplicate files under a root. Traversal runs to completion
// before any file is hashed, and only files sharing a size are hashed.
type Scanner struct {
	fs        afero.Fs
	opts      options.ScanOptions
	traverser *Traverser
	confirmer *Confirmer
	metrics   *common.ScanMetrics
	validator *common.ValidationUtils
}

// New creates a scanner over fs with a content hasher built from opts
func New(fs afero.Fs, opts options.ScanOptions) (*Scanner, error) {
	opts = opts.Normalize()

	hasher, err := hashing.NewContentHasher(fs, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create hasher: %w", err)
	}
	return NewWithHasher(fs, opts, hasher), nil
}

// NewOsScanner creates a scanner over the host filesystem
func NewOsScanner(opts options.ScanOptions) (*Scanner, error) {
	return New(afero.NewOsFs(), opts)
}

// NewWithHasher creates a scanner that confirms duplicates through hasher
func NewWithHasher(fs afero.Fs, opts options.ScanOptions, hasher hashing.Hasher) *Scanner {
	opts = opts.Normalize()
	return &Scanner{
		fs:        fs,
		opts:      opts,
		traverser: NewTraverser(fs, opts),
		confirmer: NewConfirmer(hasher, opts),
		metrics:   &common.ScanMetrics{},
		validator: common.NewValidationUtils(),
	}
}

// Fs returns the filesystem the scanner reads from
func (s *Scanner) Fs() afero.Fs {
	return s.fs
}

// FindDuplicates returns the duplicate groups under root. It never fails:
// an unusable root yields an empty slice.
func (s *Scanner) FindDuplicates(root string, onProgress types.ProgressFunc) []types.DuplicateGroup {
	result, err := s.Scan(context.Background(), root, onProgress)
	if err != nil {
		return []types.DuplicateGroup{}
	}
	return result.Groups
}

// Scan runs a full scan of root. The only error is cancellation, reported
// as common.ErrScanCancelled; a root that does not resolve is reported
// through ScanResult.RootErr.
func (s *Scanner) Scan(ctx context.Context, root string, onProgress types.ProgressFunc) (*types.ScanResult, error) {
	start := time.Now()
	result := &types.ScanResult{
		ID:        uuid.New(),
		Root:      root,
		Groups:    make([]types.DuplicateGroup, 0),
		StartedAt: start,
	}

	slog.Info("Starting duplicate scan",
		"scan_id", result.ID,
		"root", root,
		"algorithm", s.opts.Algorithm,
		"hash_workers", s.opts.HashWorkers)

	if err := s.validator.ValidatePath(root); err != nil {
		return s.finishUnresolved(result, start, err), nil
	}
	root = filepath.Clean(root)
	result.Root = root

	if err := common.ResolveDirectory(s.fs, root); err != nil {
		return s.finishUnresolved(result, start, err), nil
	}
	result.RootResolved = true

	coll := s.traverser.Traverse(ctx, root)
	if err := s.validator.ValidateContextCancellation(ctx); err != nil {
		return nil, s.cancelled(start, err)
	}

	buckets := coll.Index.Candidates()
	conf, err := s.confirmer.ConfirmDetailed(ctx, buckets, onProgress)
	if err != nil {
		return nil, s.cancelled(start, err)
	}

	types.SortGroups(conf.Groups)
	result.Groups = conf.Groups
	result.Skipped = append(coll.Skipped, conf.Skipped...)
	result.Stats.FilesFound = coll.Index.Count()
	result.Stats.Candidates = conf.Total
	result.Stats.Hashed = conf.Bitmaps.HashedCount()
	result.Stats.Failed = conf.Bitmaps.FailedCount()
	result.Summarize()

	result.FinishedAt = time.Now()
	result.Stats.Duration = result.FinishedAt.Sub(start)

	s.metrics.RecordScan(start, true,
		result.Stats.FilesFound,
		result.Stats.Hashed,
		result.Stats.Failed,
		result.Stats.Groups,
		result.Stats.ReclaimableBytes)

	slog.Info("Duplicate scan completed",
		"scan_id", result.ID,
		"files_found", result.Stats.FilesFound,
		"candidates", result.Stats.Candidates,
		"groups", result.Stats.Groups,
		"reclaimable_bytes", result.Stats.ReclaimableBytes,
		"skipped", len(result.Skipped),
		"duration", result.Stats.Duration)

	return result, nil
}

func (s *Scanner) finishUnresolved(result *types.ScanResult, start time.Time, err error) *types.ScanResult {
	slog.Warn("Could not scan root",
		"root", result.Root,
		"error", err)

	result.RootErr = err
	result.FinishedAt = time.Now()
	result.Stats.Duration = result.FinishedAt.Sub(start)
	s.metrics.RecordScan(start, false, 0, 0, 0, 0, 0)
	return result
}

func (s *Scanner) cancelled(start time.Time, cause error) error {
	s.metrics.RecordScan(start, false, 0, 0, 0, 0, 0)
	slog.Info("Duplicate scan cancelled", "cause", cause)
	return fmt.Errorf("%w: %w", common.ErrScanCancelled, cause)
}

// Metrics returns counters accumulated over every scan run by s
func (s *Scanner) Metrics() map[string]interface{} {
	return s.metrics.GetMetrics()
}

package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/common"
	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/options"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// FileOperationsService removes the files a Selection does not keep
type FileOperationsService struct {
	fs         afero.Fs
	validator  *common.ValidationUtils
	errorUtils *common.ErrorUtils
	metrics    *common.BaseMetrics
}

// DeleteError pairs a path with the reason it was not removed
type DeleteError struct {
	Path string
	Err  error
}

func (e DeleteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e DeleteError) Unwrap() error {
	return e.Err
}

// DeleteReport summarizes one DeleteUnkept run
type DeleteReport struct {
	Deleted    []string
	Errors     []DeleteError
	FreedBytes int64
	DryRun     bool
	Trashed    bool
}

// NewFileOperationsService creates a service operating on fs
func NewFileOperationsService(fs afero.Fs) *FileOperationsService {
	return &FileOperationsService{
		fs:         fs,
		validator:  common.NewValidationUtils(),
		errorUtils: common.NewErrorUtils(),
		metrics:    &common.BaseMetrics{},
	}
}

// DeleteUnkept removes every unkept file of sel, or moves it to
// opts.TrashDir when set. Groups where nothing is kept are refused so at
// least one copy always survives. Group membership is never changed.
// The only returned error is cancellation; per-file failures are in the report.
func (fos *FileOperationsService) DeleteUnkept(ctx context.Context, sel *Selection, opts options.DeleteOptions) (*DeleteReport, error) {
	report := &DeleteReport{DryRun: opts.DryRun, Trashed: opts.TrashDir != ""}

	for gi, g := range sel.Groups() {
		if !sel.HasKept(gi) {
			slog.Warn("Refusing to delete every copy of a group",
				"group", gi,
				"digest", g.Digest.String())
			report.Errors = append(report.Errors, DeleteError{
				Path: g.Files[0].Path,
				Err:  fmt.Errorf("%w: group %d", common.ErrNothingKept, gi),
			})
			continue
		}

		for _, f := range sel.Unkept(gi) {
			if err := fos.validator.ValidateContextCancellation(ctx); err != nil {
				return report, err
			}

			if err := fos.DeleteFile(ctx, f.Path, opts); err != nil {
				report.Errors = append(report.Errors, DeleteError{Path: f.Path, Err: err})
				continue
			}
			report.Deleted = append(report.Deleted, f.Path)
			report.FreedBytes += f.Size
		}
	}

	slog.Info("Removal of unkept duplicates finished",
		"deleted", len(report.Deleted),
		"errors", len(report.Errors),
		"freed_bytes", report.FreedBytes,
		"dry_run", opts.DryRun)

	return report, nil
}

// DeleteFile removes a single regular file, or moves it to opts.TrashDir
func (fos *FileOperationsService) DeleteFile(ctx context.Context, path string, opts options.DeleteOptions) error {
	start := time.Now()

	if err := fos.validator.ValidatePath(path); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	info, err := fos.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file does not exist: %s", path)
		}
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory: %s", path)
	}

	if opts.DryRun {
		slog.Info("Dry run: would delete", "path", path, "trash", opts.TrashDir)
		return nil
	}

	if opts.TrashDir != "" {
		err = fos.moveToTrash(ctx, path, opts.TrashDir)
	} else {
		slog.Debug("Deleting file", "path", path)
		err = fos.fs.Remove(path)
	}

	fos.metrics.UpdateBaseMetrics(err == nil)
	if err != nil {
		return fos.errorUtils.HandleOperationError(err, "delete", path, true)
	}

	slog.Info("File deleted successfully", "path", path, "duration", time.Since(start))
	return nil
}

func (fos *FileOperationsService) moveToTrash(_ context.Context, path, trashDir string) error {
	if err := fos.fs.MkdirAll(trashDir, 0o755); err != nil {
		return fmt.Errorf("failed to create trash directory: %w", err)
	}

	trashFile := filepath.Join(trashDir, trashName(path))

	err := fos.fs.Rename(path, trashFile)
	if err == nil {
		return nil
	}
	if !fos.isCrossDeviceError(err) {
		return err
	}

	slog.Warn("Cross-device move detected, falling back to copy+delete", "src", path, "dst", trashFile)
	if err := fos.copyFile(path, trashFile); err != nil {
		return err
	}
	return fos.fs.Remove(path)
}

// trashName returns <unix-nanos>_<id>_<name>; copies sharing a base name must not collide
func trashName(path string) string {
	return fmt.Sprintf("%d_%s_%s", time.Now().UnixNano(), uuid.NewString()[:8], filepath.Base(path))
}

func (fos *FileOperationsService) copyFile(src, dst string) error {
	in, err := fos.fs.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source %s: %w", src, err)
	}
	defer in.Close()

	out, err := fos.fs.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}

func (fos *FileOperationsService) isCrossDeviceError(err error) bool {
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return errors.Is(linkErr.Err, syscall.EXDEV)
	}
	return false
}

// GetMetrics returns counters over every delete performed
func (fos *FileOperationsService) GetMetrics() map[string]interface{} {
	return fos.metrics.GetBaseMetrics()
}

package services

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/common"
	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/options"
	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/types"

	"github.com/spf13/afero"
)

// Selection tracks which files of each duplicate group the user keeps.
// Every file starts out kept. Modification times are read from the
// filesystem each time a newest/oldest rule is applied, never cached.
type Selection struct {
	fs     afero.Fs
	groups []types.DuplicateGroup
	keep   [][]bool
}

// NewSelection creates a selection over groups with every file kept
func NewSelection(fs afero.Fs, groups []types.DuplicateGroup) *Selection {
	keep := make([][]bool, len(groups))
	for gi, g := range groups {
		keep[gi] = make([]bool, len(g.Files))
		for fi := range keep[gi] {
			keep[gi][fi] = true
		}
	}
	return &Selection{fs: fs, groups: groups, keep: keep}
}

// Groups returns the groups the selection covers
func (s *Selection) Groups() []types.DuplicateGroup {
	return s.groups
}

func (s *Selection) checkGroup(group int) error {
	if group < 0 || group >= len(s.groups) {
		return fmt.Errorf("%w: %d", common.ErrInvalidGroup, group)
	}
	return nil
}

func (s *Selection) checkFile(group, file int) error {
	if err := s.checkGroup(group); err != nil {
		return err
	}
	if file < 0 || file >= len(s.keep[group]) {
		return fmt.Errorf("%w: group %d file %d", common.ErrInvalidFile, group, file)
	}
	return nil
}

// IsKept reports whether a file is currently kept
func (s *Selection) IsKept(group, file int) (bool, error) {
	if err := s.checkFile(group, file); err != nil {
		return false, err
	}
	return s.keep[group][file], nil
}

// SetKept sets the keep flag of one file
func (s *Selection) SetKept(group, file int, kept bool) error {
	if err := s.checkFile(group, file); err != nil {
		return err
	}
	s.keep[group][file] = kept
	return nil
}

// Toggle flips the keep flag of one file
func (s *Selection) Toggle(group, file int) error {
	if err := s.checkFile(group, file); err != nil {
		return err
	}
	s.keep[group][file] = !s.keep[group][file]
	return nil
}

// KeepAll marks every file of every group as kept
func (s *Selection) KeepAll() {
	for gi := range s.keep {
		for fi := range s.keep[gi] {
			s.keep[gi][fi] = true
		}
	}
}

// KeepNewest keeps only the most recently modified file of a group
func (s *Selection) KeepNewest(group int) error {
	return s.keepByModTime(group, true)
}

// KeepOldest keeps only the least recently modified file of a group
func (s *Selection) KeepOldest(group int) error {
	return s.keepByModTime(group, false)
}

// KeepNewestAll applies KeepNewest to every group
func (s *Selection) KeepNewestAll() {
	for gi := range s.groups {
		_ = s.keepByModTime(gi, true)
	}
}

// KeepOldestAll applies KeepOldest to every group
func (s *Selection) KeepOldestAll() {
	for gi := range s.groups {
		_ = s.keepByModTime(gi, false)
	}
}

// Apply runs a bulk keep strategy over every group
func (s *Selection) Apply(strategy options.KeepStrategy) error {
	switch strategy {
	case options.KeepNewest:
		s.KeepNewestAll()
	case options.KeepOldest:
		s.KeepOldestAll()
	case options.KeepAll, "":
		s.KeepAll()
	default:
		return fmt.Errorf("unknown keep strategy %q", strategy)
	}
	return nil
}

// keepByModTime keeps exactly one file. Files whose mtime cannot be read
// never win over a file with a known mtime; ties keep the earlier file.
// When no mtime is readable the first file is kept.
func (s *Selection) keepByModTime(group int, newest bool) error {
	if err := s.checkGroup(group); err != nil {
		return err
	}

	best := -1
	var bestTime time.Time
	for fi, f := range s.groups[group].Files {
		info, err := s.fs.Stat(f.Path)
		if err != nil {
			slog.Debug("Modification time unavailable",
				"path", f.Path,
				"error", err)
			continue
		}

		mt := info.ModTime()
		if best == -1 || (newest && mt.After(bestTime)) || (!newest && mt.Before(bestTime)) {
			best = fi
			bestTime = mt
		}
	}
	if best == -1 {
		best = 0
	}

	for fi := range s.keep[group] {
		s.keep[group][fi] = fi == best
	}
	return nil
}

// HasKept reports whether at least one file of a group is kept
func (s *Selection) HasKept(group int) bool {
	if s.checkGroup(group) != nil {
		return false
	}
	for _, kept := range s.keep[group] {
		if kept {
			return true
		}
	}
	return false
}

// Unkept returns the files of a group that are not kept
func (s *Selection) Unkept(group int) []types.FileRecord {
	if s.checkGroup(group) != nil {
		return nil
	}
	var out []types.FileRecord
	for fi, f := range s.groups[group].Files {
		if !s.keep[group][fi] {
			out = append(out, f)
		}
	}
	return out
}

// Savings is the total size of every file not kept
func (s *Selection) Savings() int64 {
	var total int64
	for gi, g := range s.groups {
		for fi, f := range g.Files {
			if !s.keep[gi][fi] {
				total += f.Size
			}
		}
	}
	return total
}

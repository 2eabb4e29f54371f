package trees

import (
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/types"

	"github.com/armon/go-radix"
)

// PathIndexStats tracks lookups served by the index
type PathIndexStats struct {
	Entries       int64
	PathLookups   int64
	PrefixLookups int64
}

// GroupPathIndex maps every member path of a scan's duplicate groups to the
// index of its group, in a patricia tree so directory prefixes can be
// queried in O(k) of the prefix length.
type GroupPathIndex struct {
	mu     sync.RWMutex
	tree   *radix.Tree
	groups []types.DuplicateGroup
	stats  PathIndexStats
}

// NewGroupPathIndex builds an index over groups. The slice is retained, not copied.
func NewGroupPathIndex(groups []types.DuplicateGroup) *GroupPathIndex {
	idx := &GroupPathIndex{
		tree:   radix.New(),
		groups: groups,
	}
	for gi, g := range groups {
		for _, f := range g.Files {
			idx.tree.Insert(normalizePath(f.Path), gi)
		}
	}
	idx.stats.Entries = int64(idx.tree.Len())

	slog.Debug("Group path index built",
		"groups", len(groups),
		"entries", idx.stats.Entries)

	return idx
}

// Lookup returns the group containing path
func (idx *GroupPathIndex) Lookup(path string) (types.DuplicateGroup, bool) {
	idx.mu.Lock()
	idx.stats.PathLookups++
	idx.mu.Unlock()

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	value, found := idx.tree.Get(normalizePath(path))
	if !found {
		return types.DuplicateGroup{}, false
	}
	return idx.groups[value.(int)], true
}

// GroupIndexesWithin returns the sorted indexes of groups with at least one
// member under dir. dir itself counts when it names a member file.
func (idx *GroupPathIndex) GroupIndexesWithin(dir string) []int {
	idx.mu.Lock()
	idx.stats.PrefixLookups++
	idx.mu.Unlock()

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	prefix := normalizePath(dir)
	seen := make(map[int]struct{})

	if value, ok := idx.tree.Get(prefix); ok {
		seen[value.(int)] = struct{}{}
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	idx.tree.WalkPrefix(prefix, func(key string, value interface{}) bool {
		seen[value.(int)] = struct{}{}
		return false
	})

	out := make([]int, 0, len(seen))
	for gi := range seen {
		out = append(out, gi)
	}
	sort.Ints(out)
	return out
}

// GroupsWithin returns the groups touching dir, in original order
func (idx *GroupPathIndex) GroupsWithin(dir string) []types.DuplicateGroup {
	indexes := idx.GroupIndexesWithin(dir)
	out := make([]types.DuplicateGroup, 0, len(indexes))
	for _, gi := range indexes {
		out = append(out, idx.groups[gi])
	}
	return out
}

// Len returns the number of indexed paths
func (idx *GroupPathIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tree.Len()
}

// GetStats returns a copy of the index statistics
func (idx *GroupPathIndex) GetStats() PathIndexStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.stats
}

func normalizePath(path string) string {
	cleaned := filepath.ToSlash(filepath.Clean(path))
	if cleaned != "/" {
		cleaned = strings.TrimSuffix(cleaned, "/")
	}
	return cleaned
}

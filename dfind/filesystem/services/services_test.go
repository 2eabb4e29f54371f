package services

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/common"
	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/options"
	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/types"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// groupFixture writes each group's files with the given mtimes (offset in hours)
func groupFixture(t *testing.T, fs afero.Fs, content string, files map[string]int) types.DuplicateGroup {
	t.Helper()
	g := types.DuplicateGroup{Size: int64(len(content)), Digest: types.Digest{0xab, 0xcd}}
	for _, path := range sortedKeys(files) {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
		mt := base.Add(time.Duration(files[path]) * time.Hour)
		require.NoError(t, fs.Chtimes(path, mt, mt))
		g.Files = append(g.Files, types.FileRecord{Path: path, Size: int64(len(content))})
	}
	return g
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func keptPaths(sel *Selection, group int) []string {
	var out []string
	for fi, f := range sel.Groups()[group].Files {
		if kept, _ := sel.IsKept(group, fi); kept {
			out = append(out, f.Path)
		}
	}
	return out
}

func TestSelection_InitiallyKeepsEverything(t *testing.T) {
	fs := afero.NewMemMapFs()
	g := groupFixture(t, fs, "abc", map[string]int{"/a": 0, "/b": 1})
	sel := NewSelection(fs, []types.DuplicateGroup{g})

	assert.Equal(t, []string{"/a", "/b"}, keptPaths(sel, 0))
	assert.Equal(t, int64(0), sel.Savings())
	assert.True(t, sel.HasKept(0))
	assert.Empty(t, sel.Unkept(0))
}

func TestSelection_Toggle(t *testing.T) {
	fs := afero.NewMemMapFs()
	g := groupFixture(t, fs, "abcd", map[string]int{"/a": 0, "/b": 1, "/c": 2})
	sel := NewSelection(fs, []types.DuplicateGroup{g})

	require.NoError(t, sel.Toggle(0, 1))
	require.NoError(t, sel.Toggle(0, 2))
	assert.Equal(t, []string{"/a"}, keptPaths(sel, 0))
	assert.Equal(t, int64(8), sel.Savings())

	require.NoError(t, sel.Toggle(0, 2))
	assert.Equal(t, int64(4), sel.Savings())

	assert.ErrorIs(t, sel.Toggle(3, 0), common.ErrInvalidGroup)
	assert.ErrorIs(t, sel.Toggle(0, 9), common.ErrInvalidFile)
}

func TestSelection_KeepNewestAndOldest(t *testing.T) {
	fs := afero.NewMemMapFs()
	g := groupFixture(t, fs, "data", map[string]int{"/old": -5, "/mid": 0, "/new": 7})
	sel := NewSelection(fs, []types.DuplicateGroup{g})

	require.NoError(t, sel.KeepNewest(0))
	assert.Equal(t, []string{"/new"}, keptPaths(sel, 0))
	assert.Equal(t, int64(8), sel.Savings())

	require.NoError(t, sel.KeepOldest(0))
	assert.Equal(t, []string{"/old"}, keptPaths(sel, 0))
}

func TestSelection_RequeriesModTimeLive(t *testing.T) {
	fs := afero.NewMemMapFs()
	g := groupFixture(t, fs, "data", map[string]int{"/a": 0, "/b": 1})
	sel := NewSelection(fs, []types.DuplicateGroup{g})

	require.NoError(t, sel.KeepNewest(0))
	assert.Equal(t, []string{"/b"}, keptPaths(sel, 0))

	// /a is touched after the selection was created
	later := base.Add(48 * time.Hour)
	require.NoError(t, fs.Chtimes("/a", later, later))

	require.NoError(t, sel.KeepNewest(0))
	assert.Equal(t, []string{"/a"}, keptPaths(sel, 0))
}

func TestSelection_UnreadableModTimeLoses(t *testing.T) {
	fs := afero.NewMemMapFs()
	g := groupFixture(t, fs, "data", map[string]int{"/a": 0, "/b": 3})
	g.Files = append([]types.FileRecord{{Path: "/vanished", Size: 4}}, g.Files...)
	sel := NewSelection(fs, []types.DuplicateGroup{g})

	require.NoError(t, sel.KeepNewest(0))
	assert.Equal(t, []string{"/b"}, keptPaths(sel, 0))

	require.NoError(t, sel.KeepOldest(0))
	assert.Equal(t, []string{"/a"}, keptPaths(sel, 0))
}

func TestSelection_TiesKeepFirst(t *testing.T) {
	fs := afero.NewMemMapFs()
	g := groupFixture(t, fs, "same", map[string]int{"/x1": 2, "/x2": 2, "/x3": 2})
	sel := NewSelection(fs, []types.DuplicateGroup{g})

	require.NoError(t, sel.KeepNewest(0))
	assert.Equal(t, []string{"/x1"}, keptPaths(sel, 0))
	require.NoError(t, sel.KeepOldest(0))
	assert.Equal(t, []string{"/x1"}, keptPaths(sel, 0))
}

func TestSelection_BulkStrategies(t *testing.T) {
	fs := afero.NewMemMapFs()
	g1 := groupFixture(t, fs, "one", map[string]int{"/g1/a": 1, "/g1/b": 2})
	g2 := groupFixture(t, fs, "second", map[string]int{"/g2/a": 5, "/g2/b": 3, "/g2/c": 4})
	sel := NewSelection(fs, []types.DuplicateGroup{g1, g2})

	require.NoError(t, sel.Apply(options.KeepNewest))
	assert.Equal(t, []string{"/g1/b"}, keptPaths(sel, 0))
	assert.Equal(t, []string{"/g2/a"}, keptPaths(sel, 1))
	assert.Equal(t, int64(3+6*2), sel.Savings())

	require.NoError(t, sel.Apply(options.KeepOldest))
	assert.Equal(t, []string{"/g1/a"}, keptPaths(sel, 0))
	assert.Equal(t, []string{"/g2/b"}, keptPaths(sel, 1))

	require.NoError(t, sel.Apply(options.KeepAll))
	assert.Equal(t, int64(0), sel.Savings())

	assert.Error(t, sel.Apply("largest"))
}

func TestFileOperations_DeleteUnkept(t *testing.T) {
	fs := afero.NewMemMapFs()
	g := groupFixture(t, fs, "payload", map[string]int{"/d/a": 0, "/d/b": 1, "/d/c": 2})
	sel := NewSelection(fs, []types.DuplicateGroup{g})
	require.NoError(t, sel.KeepNewest(0))

	fos := NewFileOperationsService(fs)
	report, err := fos.DeleteUnkept(context.Background(), sel, options.DefaultDeleteOptions())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"/d/a", "/d/b"}, report.Deleted)
	assert.Empty(t, report.Errors)
	assert.Equal(t, int64(14), report.FreedBytes)

	for path, exists := range map[string]bool{"/d/a": false, "/d/b": false, "/d/c": true} {
		ok, err := afero.Exists(fs, path)
		require.NoError(t, err)
		assert.Equal(t, exists, ok, path)
	}

	// Group membership is untouched
	assert.Len(t, sel.Groups()[0].Files, 3)
	assert.Equal(t, int64(2), fos.GetMetrics()["successful_ops"])
}

func TestFileOperations_DryRunTouchesNothing(t *testing.T) {
	fs := afero.NewMemMapFs()
	g := groupFixture(t, fs, "payload", map[string]int{"/d/a": 0, "/d/b": 1})
	sel := NewSelection(fs, []types.DuplicateGroup{g})
	require.NoError(t, sel.KeepOldest(0))

	report, err := NewFileOperationsService(fs).DeleteUnkept(context.Background(), sel, options.DeleteOptions{DryRun: true})
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, []string{"/d/b"}, report.Deleted)
	assert.Equal(t, int64(7), report.FreedBytes)

	ok, err := afero.Exists(fs, "/d/b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileOperations_MoveToTrash(t *testing.T) {
	fs := afero.NewMemMapFs()
	g := groupFixture(t, fs, "payload", map[string]int{"/x/file.txt": 0, "/y/file.txt": 1, "/z/file.txt": 2})
	sel := NewSelection(fs, []types.DuplicateGroup{g})
	require.NoError(t, sel.KeepNewest(0))

	report, err := NewFileOperationsService(fs).DeleteUnkept(context.Background(), sel, options.DeleteOptions{TrashDir: "/trash"})
	require.NoError(t, err)
	assert.True(t, report.Trashed)
	assert.Len(t, report.Deleted, 2)

	entries, err := afero.ReadDir(fs, "/trash")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	names := make(map[string]bool)
	for _, e := range entries {
		assert.Regexp(t, `^\d+_[0-9a-f]{8}_file\.txt$`, e.Name())
		names[e.Name()] = true
	}
	assert.Len(t, names, 2)

	ok, err := afero.Exists(fs, "/z/file.txt")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTrashName(t *testing.T) {
	first := trashName("/x/photo.jpg")
	second := trashName("/y/photo.jpg")

	assert.Regexp(t, `^\d+_[0-9a-f]{8}_photo\.jpg$`, first)
	assert.NotEqual(t, first, second)
}

func TestFileOperations_RefusesGroupWithNothingKept(t *testing.T) {
	fs := afero.NewMemMapFs()
	g1 := groupFixture(t, fs, "first", map[string]int{"/a1": 0, "/a2": 1})
	g2 := groupFixture(t, fs, "second", map[string]int{"/b1": 0, "/b2": 1})
	sel := NewSelection(fs, []types.DuplicateGroup{g1, g2})
	require.NoError(t, sel.Toggle(0, 0))
	require.NoError(t, sel.Toggle(0, 1))
	require.NoError(t, sel.Toggle(1, 0))

	report, err := NewFileOperationsService(fs).DeleteUnkept(context.Background(), sel, options.DefaultDeleteOptions())
	require.NoError(t, err)

	require.Len(t, report.Errors, 1)
	assert.ErrorIs(t, report.Errors[0], common.ErrNothingKept)
	assert.Equal(t, []string{"/b1"}, report.Deleted)

	for _, path := range []string{"/a1", "/a2", "/b2"} {
		ok, err := afero.Exists(fs, path)
		require.NoError(t, err)
		assert.True(t, ok, path)
	}
}

func TestFileOperations_MissingFileIsReported(t *testing.T) {
	fs := afero.NewMemMapFs()
	g := groupFixture(t, fs, "gone", map[string]int{"/k": 0, "/m": 1})
	sel := NewSelection(fs, []types.DuplicateGroup{g})
	require.NoError(t, sel.Toggle(0, 1))
	require.NoError(t, fs.Remove("/m"))

	report, err := NewFileOperationsService(fs).DeleteUnkept(context.Background(), sel, options.DefaultDeleteOptions())
	require.NoError(t, err)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "/m", report.Errors[0].Path)
	assert.Empty(t, report.Deleted)
}

func TestFileOperations_Cancelled(t *testing.T) {
	fs := afero.NewMemMapFs()
	g := groupFixture(t, fs, "data", map[string]int{"/a": 0, "/b": 1})
	sel := NewSelection(fs, []types.DuplicateGroup{g})
	require.NoError(t, sel.KeepNewest(0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewFileOperationsService(fs).DeleteUnkept(ctx, sel, options.DefaultDeleteOptions())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Deleted)
}

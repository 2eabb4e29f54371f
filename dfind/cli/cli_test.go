package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem"
	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/options"
	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/services"
	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/types"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingInteractor captures what a command reports instead of drawing it
type recordingInteractor struct {
	outputs  []string
	warnings []string
	errors   []string
	updates  []types.ScanProgress
	started  int
	stopped  int
}

func (r *recordingInteractor) Output(message string)  { r.outputs = append(r.outputs, message) }
func (r *recordingInteractor) Warning(message string) { r.warnings = append(r.warnings, message) }
func (r *recordingInteractor) Error(message string, err error) {
	if err != nil {
		message += ": " + err.Error()
	}
	r.errors = append(r.errors, message)
}
func (r *recordingInteractor) StartSpinner(string)      {}
func (r *recordingInteractor) StopSpinner(bool, string) {}
func (r *recordingInteractor) StartProgress(string, int) {
	r.started++
}
func (r *recordingInteractor) UpdateProgress(p types.ScanProgress) {
	r.updates = append(r.updates, p)
}
func (r *recordingInteractor) StopProgress() { r.stopped++ }

func newTestApp(t *testing.T, files map[string]string) (*App, *recordingInteractor) {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)

	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(orig) })

	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}

	rec := &recordingInteractor{}
	return &App{Fs: fs, Interactor: rec, Logger: zerolog.Nop()}, rec
}

func execute(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd(app)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestScanCommand_TextReport(t *testing.T) {
	app, rec := newTestApp(t, map[string]string{
		"/data/a.txt":      "same content",
		"/data/copy/a.txt": "same content",
		"/data/other.txt":  "different!!!",
	})

	out, err := execute(t, app, "scan", "/data")
	require.NoError(t, err)

	assert.Contains(t, out, "Group 1")
	assert.Contains(t, out, "/data/a.txt")
	assert.Contains(t, out, "/data/copy/a.txt")
	assert.NotContains(t, out, "/data/other.txt")

	assert.Equal(t, 1, rec.started)
	assert.Equal(t, 1, rec.stopped)
	require.NotEmpty(t, rec.updates)
	assert.Equal(t, 3, rec.updates[len(rec.updates)-1].Processed)
}

func TestScanCommand_JSONReport(t *testing.T) {
	app, _ := newTestApp(t, map[string]string{
		"/j/one": "payload",
		"/j/two": "payload",
	})

	out, err := execute(t, app, "scan", "/j", "--format", "json")
	require.NoError(t, err)

	var decoded struct {
		Root         string `json:"root"`
		RootResolved bool   `json:"root_resolved"`
		Groups       []struct {
			Files []types.FileRecord `json:"files"`
		} `json:"groups"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "/j", decoded.Root)
	assert.True(t, decoded.RootResolved)
	require.Len(t, decoded.Groups, 1)
	assert.Len(t, decoded.Groups[0].Files, 2)
}

func TestScanCommand_UnresolvedRootFails(t *testing.T) {
	app, _ := newTestApp(t, nil)

	out, err := execute(t, app, "scan", "/nowhere")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCouldNotScan)
	assert.Contains(t, out, "Could not scan /nowhere")
}

func TestScanCommand_KeepNewestDryRun(t *testing.T) {
	app, rec := newTestApp(t, map[string]string{
		"/k/old": "dup",
		"/k/new": "dup",
	})
	now := time.Now()
	require.NoError(t, app.Fs.Chtimes("/k/old", now, now.Add(-time.Hour)))
	require.NoError(t, app.Fs.Chtimes("/k/new", now, now))

	out, err := execute(t, app, "scan", "/k", "--keep", "newest", "--delete", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "keep")
	assert.Contains(t, out, "drop")

	exists, err := afero.Exists(app.Fs, "/k/old")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.True(t, containsLine(rec.outputs, "Would remove 1 files"))
}

func TestScanCommand_KeepOldestDeletes(t *testing.T) {
	app, _ := newTestApp(t, map[string]string{
		"/k/old": "dup",
		"/k/new": "dup",
	})
	now := time.Now()
	require.NoError(t, app.Fs.Chtimes("/k/old", now, now.Add(-time.Hour)))
	require.NoError(t, app.Fs.Chtimes("/k/new", now, now))

	_, err := execute(t, app, "scan", "/k", "--keep", "oldest", "--delete")
	require.NoError(t, err)

	exists, _ := afero.Exists(app.Fs, "/k/new")
	assert.False(t, exists)
	exists, _ = afero.Exists(app.Fs, "/k/old")
	assert.True(t, exists)
}

func TestScanCommand_DeleteRequiresKeepRule(t *testing.T) {
	app, _ := newTestApp(t, map[string]string{"/d/a": "x", "/d/b": "x"})

	_, err := execute(t, app, "scan", "/d", "--delete")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--keep")

	exists, _ := afero.Exists(app.Fs, "/d/a")
	assert.True(t, exists)
}

func TestDeleteUnkept_StopsWhenCancelled(t *testing.T) {
	app, rec := newTestApp(t, map[string]string{
		"/c/one":   "dup",
		"/c/two":   "dup",
		"/c/three": "dup",
	})

	scanner, err := filesystem.New(app.Fs, options.DefaultScanOptions())
	require.NoError(t, err)
	result, err := scanner.Scan(context.Background(), "/c", nil)
	require.NoError(t, err)
	require.Len(t, result.Groups, 1)

	sel := services.NewSelection(app.Fs, result.Groups)
	require.NoError(t, sel.Apply(options.KeepNewest))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = deleteUnkept(ctx, app, sel, options.DefaultDeleteOptions())
	require.ErrorIs(t, err, context.Canceled)

	for _, path := range []string{"/c/one", "/c/two", "/c/three"} {
		exists, err := afero.Exists(app.Fs, path)
		require.NoError(t, err)
		assert.True(t, exists, path)
	}
	assert.True(t, containsLine(rec.warnings, "Removal cancelled after 0 files"))
}

func TestScanCommand_Within(t *testing.T) {
	app, _ := newTestApp(t, map[string]string{
		"/w/photos/a.jpg": "image-bytes",
		"/w/backup/a.jpg": "image-bytes",
		"/w/docs/x.txt":   "text",
		"/w/tmp/x.txt":    "text",
	})

	out, err := execute(t, app, "scan", "/w", "--within", "/w/photos")
	require.NoError(t, err)
	assert.Contains(t, out, "/w/photos/a.jpg")
	assert.Contains(t, out, "/w/backup/a.jpg")
	assert.NotContains(t, out, "/w/docs/x.txt")
}

func TestScanCommand_UnknownKeepRule(t *testing.T) {
	app, _ := newTestApp(t, map[string]string{"/u/a": "x"})

	_, err := execute(t, app, "scan", "/u", "--keep", "largest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "largest")
}

func TestVersionCommand(t *testing.T) {
	app, _ := newTestApp(t, nil)

	out, err := execute(t, app, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "dfind "+Version))
}

func containsLine(lines []string, substr string) bool {
	for _, l := range lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

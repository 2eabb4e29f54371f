package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/common"
	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/types"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// TextOptions tunes the text report
type TextOptions struct {
	// Kept marks files as kept or dropped; nil renders no markers
	Kept func(group, file int) bool
	// ShowSkipped lists every skipped entry instead of only their count
	ShowSkipped bool
}

// Write renders result in the named format
func Write(w io.Writer, format string, result *types.ScanResult, opts TextOptions) error {
	switch strings.ToLower(format) {
	case FormatJSON:
		return WriteJSON(w, result)
	case FormatText, "":
		return WriteText(w, result, opts)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// WriteText renders a human-readable report
func WriteText(w io.Writer, result *types.ScanResult, opts TextOptions) error {
	var b strings.Builder

	if !result.RootResolved {
		b.WriteString(Red.Render(fmt.Sprintf("Could not scan %s: %v", result.Root, result.RootErr)))
		b.WriteString("\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	if len(result.Groups) == 0 {
		b.WriteString(Green.Render(fmt.Sprintf("No duplicates found in %s", result.Root)))
		b.WriteString("\n")
	}

	for gi, g := range result.Groups {
		b.WriteString(Header.Render(fmt.Sprintf("Group %d", gi+1)))
		b.WriteString(Gray.Render(fmt.Sprintf("  %d files × %s  sha:%s", g.Len(), common.FormatBytes(g.Size), shortDigest(g.Digest))))
		b.WriteString("\n")
		for fi, f := range g.Files {
			marker := "  "
			if opts.Kept != nil {
				if opts.Kept(gi, fi) {
					marker = Green.Render("keep") + " "
				} else {
					marker = Red.Render("drop") + " "
				}
			}
			b.WriteString("  ")
			b.WriteString(marker)
			b.WriteString(f.Path)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(BoxStyle.Render(summary(result)))
	b.WriteString("\n")

	if len(result.Skipped) > 0 {
		b.WriteString(Yellow.Render(fmt.Sprintf("%d entries skipped because they could not be read", len(result.Skipped))))
		b.WriteString("\n")
		if opts.ShowSkipped {
			for _, s := range result.Skipped {
				b.WriteString(Gray.Render(fmt.Sprintf("  [%s] %s: %s", s.Stage, s.Path, s.Err)))
				b.WriteString("\n")
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func summary(result *types.ScanResult) string {
	stats := result.Stats
	timeUtils := common.NewTimeUtils()
	lines := []string{
		Info.Render("Scan summary"),
		fmt.Sprintf("Files found:      %d", stats.FilesFound),
		fmt.Sprintf("Files hashed:     %d of %d", stats.Hashed, stats.Candidates),
		fmt.Sprintf("Duplicate groups: %d (%d files)", stats.Groups, stats.DuplicateFiles),
		fmt.Sprintf("Reclaimable:      %s", common.FormatBytes(stats.ReclaimableBytes)),
		fmt.Sprintf("Duration:         %s", timeUtils.FormatDuration(stats.Duration)),
	}
	return strings.Join(lines, "\n")
}

func shortDigest(d types.Digest) string {
	s := d.String()
	if len(s) > 12 {
		return s[:12]
	}
	return s
}

// jsonReport is the serialized shape of a scan, with the root error as text
type jsonReport struct {
	*types.ScanResult
	RootError string `json:"root_error,omitempty"`
}

// WriteJSON renders result as indented JSON
func WriteJSON(w io.Writer, result *types.ScanResult) error {
	out := jsonReport{ScanResult: result}
	if result.RootErr != nil {
		out.RootError = result.RootErr.Error()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

package cli

import (
	"io"
	"path/filepath"

	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/types"

	"github.com/pterm/pterm"
)

// TerminalInteractor renders messages, spinners and the hashing progress
// bar with pterm. Everything goes to one writer, normally stderr, so a
// report on stdout stays machine-readable.
type TerminalInteractor struct {
	writer  io.Writer
	spinner *pterm.SpinnerPrinter
	bar     *pterm.ProgressbarPrinter
	current int
}

// NewTerminalInteractor creates an interactor writing to w
func NewTerminalInteractor(w io.Writer) *TerminalInteractor {
	return &TerminalInteractor{writer: w}
}

func (ti *TerminalInteractor) Output(message string) {
	pterm.Info.WithWriter(ti.writer).Println(message)
}

func (ti *TerminalInteractor) Warning(message string) {
	pterm.Warning.WithWriter(ti.writer).Println(message)
}

func (ti *TerminalInteractor) Error(message string, err error) {
	if err == nil {
		pterm.Error.WithWriter(ti.writer).Println(message)
		return
	}
	pterm.Error.WithWriter(ti.writer).Printfln("%s: %v", message, err)
}

func (ti *TerminalInteractor) StartSpinner(message string) {
	spinner, err := pterm.DefaultSpinner.
		WithStyle(pterm.NewStyle(pterm.FgCyan)).
		WithWriter(ti.writer).
		WithRemoveWhenDone(true).
		Start(message)
	if err != nil {
		return
	}
	ti.spinner = spinner
}

func (ti *TerminalInteractor) StopSpinner(success bool, message string) {
	if ti.spinner == nil {
		return
	}
	if success {
		ti.spinner.Success(message)
	} else {
		ti.spinner.Fail(message)
	}
	ti.spinner = nil
}

func (ti *TerminalInteractor) StartProgress(title string, total int) {
	bar, err := pterm.DefaultProgressbar.
		WithTotal(max(total, 1)).
		WithTitle(title).
		WithWriter(ti.writer).
		WithRemoveWhenDone(true).
		Start()
	if err != nil {
		return
	}
	ti.bar = bar
	ti.current = 0
}

func (ti *TerminalInteractor) UpdateProgress(progress types.ScanProgress) {
	if ti.bar == nil {
		return
	}
	// Updates are coalesced upstream, so the bar may jump by more than one
	if delta := progress.Processed - ti.current; delta > 0 {
		ti.bar.UpdateTitle(filepath.Base(progress.CurrentFile))
		ti.bar.Add(delta)
		ti.current = progress.Processed
	}
}

func (ti *TerminalInteractor) StopProgress() {
	if ti.bar == nil {
		return
	}
	_, _ = ti.bar.Stop()
	ti.bar = nil
}

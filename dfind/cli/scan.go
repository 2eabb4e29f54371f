package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	internal "github.com/ZanzyTHEbar/dupe-finder/dfind"
	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem"
	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/common"
	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/options"
	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/services"
	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/types"
	"github.com/ZanzyTHEbar/dupe-finder/dfind/report"
	"github.com/ZanzyTHEbar/dupe-finder/dfind/trees"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type scanFlags struct {
	within      string
	keep        string
	delete      bool
	dryRun      bool
	showSkipped bool
}

// ErrCouldNotScan marks a run whose root never resolved
var ErrCouldNotScan = errors.New("could not scan")

func NewScanCmd(app *App) *cobra.Command {
	flags := &scanFlags{}

	cmd := &cobra.Command{
		Use:   "scan [root]",
		Short: "Scan a directory tree for duplicate files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			return runScan(cmd, app, flags, root)
		},
	}

	defaults := options.DefaultScanOptions()
	f := cmd.Flags()
	f.Int("workers", defaults.TraversalWorkers, "Directories listed concurrently per level")
	f.Int("hash-workers", defaults.HashWorkers, "Files hashed concurrently within a size group (1 = sequential)")
	f.Int("buffer-size", defaults.BufferSize, "Read buffer size in bytes for hashing (minimum 4096)")
	f.String("algorithm", string(defaults.Algorithm), "Content hash: sha256 or sha512")
	f.String("ignore-file", defaults.IgnoreFile, "Gitignore-style file read from the scan root")
	f.StringP("format", "f", internal.DefaultOutputFormat, "Report format: text or json")
	f.String("trash", "", "Move removed files into this directory instead of deleting them")
	f.Lookup("trash").NoOptDefVal = internal.DefaultTrashDir

	f.StringVar(&flags.within, "within", "", "Only report groups with a file under this directory")
	f.StringVar(&flags.keep, "keep", string(options.KeepAll), "Keep rule per group: none, newest or oldest")
	f.BoolVar(&flags.delete, "delete", false, "Remove every file not kept (requires --keep newest|oldest)")
	f.BoolVar(&flags.dryRun, "dry-run", false, "With --delete, only report what would be removed")
	f.BoolVar(&flags.showSkipped, "show-skipped", false, "List entries that could not be read")

	_ = viper.BindPFlag("scan.workers", f.Lookup("workers"))
	_ = viper.BindPFlag("scan.hashWorkers", f.Lookup("hash-workers"))
	_ = viper.BindPFlag("scan.bufferSize", f.Lookup("buffer-size"))
	_ = viper.BindPFlag("scan.algorithm", f.Lookup("algorithm"))
	_ = viper.BindPFlag("scan.ignoreFile", f.Lookup("ignore-file"))
	_ = viper.BindPFlag("output.format", f.Lookup("format"))
	_ = viper.BindPFlag("output.trashDir", f.Lookup("trash"))

	return cmd
}

func runScan(cmd *cobra.Command, app *App, flags *scanFlags, root string) error {
	keep := options.KeepStrategy(flags.keep)
	switch keep {
	case options.KeepAll, options.KeepNewest, options.KeepOldest:
	default:
		return fmt.Errorf("unknown --keep value %q: use none, newest or oldest", flags.keep)
	}
	if flags.delete && keep == options.KeepAll {
		return fmt.Errorf("refusing to delete: choose --keep newest or --keep oldest")
	}

	pathUtils := common.NewPathUtils()
	root = pathUtils.NormalizePath(root)

	cfg := app.Config
	scanner, err := filesystem.New(app.Fs, cfg.Scan.ToScanOptions())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.Logger.Info().Str("root", root).Str("algorithm", cfg.Scan.Algorithm).Msg("scan started")

	task := scanner.Start(ctx, root)
	result, err := followTask(app, task, root)
	if err != nil {
		if errors.Is(err, common.ErrScanCancelled) {
			app.Interactor.Warning("Scan cancelled; no results were kept")
		}
		return err
	}

	app.Logger.Info().
		Str("scan_id", result.ID.String()).
		Int("files_found", result.Stats.FilesFound).
		Int("groups", result.Stats.Groups).
		Dur("duration", result.Stats.Duration).
		Msg("scan finished")

	if flags.within != "" && result.RootResolved {
		within := pathUtils.NormalizePath(flags.within)
		result.Groups = trees.NewGroupPathIndex(result.Groups).GroupsWithin(within)
		result.Summarize()
	}

	sel := services.NewSelection(app.Fs, result.Groups)
	if err := sel.Apply(keep); err != nil {
		return err
	}

	textOpts := report.TextOptions{ShowSkipped: flags.showSkipped}
	if keep != options.KeepAll {
		textOpts.Kept = func(group, file int) bool {
			kept, _ := sel.IsKept(group, file)
			return kept
		}
	}
	if err := report.Write(cmd.OutOrStdout(), cfg.Output.Format, result, textOpts); err != nil {
		return err
	}

	if !result.RootResolved {
		return fmt.Errorf("%w %s: %w", ErrCouldNotScan, root, result.RootErr)
	}

	if keep != options.KeepAll {
		app.Interactor.Output(fmt.Sprintf("Selected for removal: %s", common.FormatBytes(sel.Savings())))
	}

	if flags.delete {
		return deleteUnkept(ctx, app, sel, options.DeleteOptions{
			DryRun:   flags.dryRun,
			TrashDir: cfg.Output.TrashDir,
		})
	}
	return nil
}

// followTask shows a spinner while the tree is walked, then a progress bar
// once hashing starts, and returns the finished task's result
func followTask(app *App, task *filesystem.ScanTask, root string) (*types.ScanResult, error) {
	app.Interactor.StartSpinner(fmt.Sprintf("Scanning %s", root))

	hashing := false
	for p := range task.Updates() {
		if !hashing {
			app.Interactor.StopSpinner(true, "Traversal complete")
			app.Interactor.StartProgress("Hashing candidates", p.Total)
			hashing = true
		}
		app.Interactor.UpdateProgress(p)
	}

	result, err := task.Wait()
	if hashing {
		app.Interactor.StopProgress()
	} else {
		app.Interactor.StopSpinner(err == nil, "Scan complete")
	}
	return result, err
}

// deleteUnkept stops at the next file once ctx is cancelled
func deleteUnkept(ctx context.Context, app *App, sel *services.Selection, opts options.DeleteOptions) error {
	fos := services.NewFileOperationsService(app.Fs)
	rep, err := fos.DeleteUnkept(ctx, sel, opts)
	if err != nil {
		app.Interactor.Warning(fmt.Sprintf("Removal cancelled after %d files", len(rep.Deleted)))
		return err
	}

	for _, e := range rep.Errors {
		app.Interactor.Error("Could not remove "+e.Path, e.Err)
	}

	verb := "Removed"
	switch {
	case opts.DryRun:
		verb = "Would remove"
	case opts.TrashDir != "":
		verb = "Moved to " + opts.TrashDir + ":"
	}
	app.Interactor.Output(fmt.Sprintf("%s %d files, freeing %s", verb, len(rep.Deleted), common.FormatBytes(rep.FreedBytes)))

	app.Logger.Info().
		Int("deleted", len(rep.Deleted)).
		Int("errors", len(rep.Errors)).
		Int64("freed_bytes", rep.FreedBytes).
		Bool("dry_run", opts.DryRun).
		Msg("removal finished")

	if len(rep.Errors) > 0 {
		return fmt.Errorf("%d files could not be removed", len(rep.Errors))
	}
	return nil
}

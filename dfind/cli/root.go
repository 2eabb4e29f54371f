package cli

import (
	"context"
	"log/slog"
	"os"

	internal "github.com/ZanzyTHEbar/dupe-finder/dfind"
	"github.com/ZanzyTHEbar/dupe-finder/dfind/config"
	"github.com/ZanzyTHEbar/dupe-finder/dfind/ports"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is stamped at build time with -ldflags "-X ...cli.Version=..."
var Version = "dev"

// App carries the collaborators every command shares
type App struct {
	Fs         afero.Fs
	Interactor ports.Interactor
	Logger     zerolog.Logger
	Config     *config.Config
}

// NewApp wires the host filesystem and a terminal interactor on stderr
func NewApp() *App {
	return &App{
		Fs:         afero.NewOsFs(),
		Interactor: NewTerminalInteractor(os.Stderr),
		Logger:     internal.GetLogger(),
	}
}

// NewRootCmd builds the command tree around app
func NewRootCmd(app *App) *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   internal.DefaultAppCMDShortCut,
		Short: "Find byte-identical duplicate files",
		Long: `dfind walks a directory tree, groups files by size and confirms
duplicates by content hash. Groups can be trimmed by keeping the newest
or oldest copy and removing or trashing the rest.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			app.Config = cfg
			app.Logger = internal.GetConsoleLogger(cfg.Log.Level)
			slog.SetLogLoggerLevel(slogLevel(cfg.Log.Level))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Path to a YAML configuration file (default searches . and "+internal.DefaultConfigPath+")")
	rootCmd.PersistentFlags().String("log-level", internal.DefaultLogLevel, "Log level: debug, info, warn, error")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(NewScanCmd(app))
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// Execute runs the CLI against the host filesystem
func Execute(ctx context.Context) error {
	return NewRootCmd(NewApp()).ExecuteContext(ctx)
}

func slogLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelWarn
	}
	return lvl
}

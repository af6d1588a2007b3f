package main

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"photogrammetry-studio/internal/bootstrap"
	"photogrammetry-studio/internal/config"
	"photogrammetry-studio/internal/logging"
)

type rootFlags struct {
	settingsPath string
	historyPath  string
	logLevel     string
	engine       string
	enginePath   string
	humanLogs    bool
}

// launch starts the desktop shell; replaced in tests.
var launch = func(app *bootstrap.App) error {
	return app.Run()
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "photogrammetry-studio",
		Short:         "Turn a folder of photos into a 3D model",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := flags.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			app, err := bootstrap.New(bootstrap.Options{
				SettingsPath: flags.settingsPath,
				HistoryPath:  flags.historyPath,
				Engine:       flags.engine,
				EnginePath:   flags.enginePath,
				Logger:       &log,
			})
			if err != nil {
				return err
			}
			return launch(app)
		},
	}

	cmd.PersistentFlags().StringVar(&flags.settingsPath, "settings", config.DefaultPath(), "Settings file (.yaml or .json)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Process log level (defaults to the settings file)")
	cmd.PersistentFlags().BoolVar(&flags.humanLogs, "human", true, "Human readable process logs")
	cmd.Flags().StringVar(&flags.historyPath, "history", "", "Job history database (defaults next to the settings file)")
	cmd.Flags().StringVar(&flags.engine, "engine", "", "Engine override: simulated or command")
	cmd.Flags().StringVar(&flags.enginePath, "engine-path", "", "Reconstruction helper executable for the command engine")

	cmd.AddCommand(newDiagnoseCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// logger builds the process logger. Without --log-level the level comes
// from the settings file.
func (f *rootFlags) logger(out io.Writer) (zerolog.Logger, error) {
	level := f.logLevel
	if level == "" {
		if settings, err := config.NewFileStore(f.settingsPath).Load(); err == nil {
			level = settings.LogLevel
		}
	}
	if out == nil {
		out = os.Stderr
	}
	return logging.New(logging.Options{Level: level, HumanReadable: f.humanLogs, Writer: out})
}

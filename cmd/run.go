package cmd

import (
	"os"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"github.com/streampi/streampi/internal/config"
	"github.com/streampi/streampi/internal/deploy"
	"github.com/streampi/streampi/internal/logging"
	"github.com/streampi/streampi/internal/process"
	"github.com/streampi/streampi/internal/stream"
)

// CreateRunCmd creates the run command.
func CreateRunCmd() *cobra.Command {
	var configFile string
	var indexPath string
	var overwriteIndex bool
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the FFmpeg stream without the API server",
		Long: `Composes the FFmpeg command from the config file, prepares deployment ` +
			`artifacts, and supervises the process with config hot-reload. Intended for ` +
			`running as a systemd unit; the exit code follows the FFmpeg process so the ` +
			`unit's restart policy applies.`,
		Run: func(_ *cobra.Command, _ []string) {
			logging.Initialize(runLoggingConfig(configFile, logJSON))
			logger := logging.GetLogger("run")

			logger.Info("Starting run command", "config", configFile)

			settings, err := config.LoadStreamSettings(configFile)
			if err != nil {
				logger.Error("Failed to load stream settings", "error", err, "config", configFile)
				os.Exit(1)
			}

			result, err := stream.Compose(settings.ToStreamConfig())
			if err != nil {
				logger.Error("Invalid stream configuration", "error", err)
				os.Exit(1)
			}

			if err := deploy.Prepare(result.Deployment, deploy.Options{
				ManifestPath: settings.OutputPath,
				IndexPath:    indexPath,
				VideoSize:    settings.VideoSize,
				Overwrite:    overwriteIndex,
			}); err != nil {
				logger.Error("Failed to prepare deployment artifacts", "error", err)
				os.Exit(1)
			}

			// Create process with ffmpeg log parsing
			proc := process.New("stream", result.Command, logger)
			proc.SetLogParser(logging.GetLogger("ffmpeg"), stream.ParseLogLevel)

			// Typed config watcher with fresh config loading
			watcher := config.NewWatcher(
				configFile,
				config.LoadStreamSettings,
				logging.GetLogger("config"),
			)

			watcher.OnReload(func(fresh config.StreamSettings) {
				newResult, composeErr := stream.Compose(fresh.ToStreamConfig())
				if composeErr != nil {
					logger.Warn("Failed to recompose command", "error", composeErr)
					return
				}

				// Compare and restart if command changed
				if newResult.Command != proc.Command() {
					logger.Info("Command changed, requesting restart")
					proc.RequestRestart(newResult.Command)
				} else {
					logger.Debug("Config reloaded, command unchanged")
				}
			})

			// Start config watcher (non-fatal if it fails)
			if err := watcher.Start(); err != nil {
				logger.Warn("Failed to start config watcher, hot-reload disabled", "error", err)
			} else {
				defer func() { _ = watcher.Stop() }()
			}

			// Tell systemd we are up; a no-op outside a unit.
			_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

			// Run with restart support
			exitCode := proc.RunWithRestart()

			logger.Info("Run command exiting", "exit_code", exitCode)
			os.Exit(exitCode)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "config.toml", "Path to configuration file")
	cmd.Flags().StringVar(&indexPath, "index-path", deploy.DefaultIndexPath, "Viewer page path for DASH deployments")
	cmd.Flags().BoolVar(&overwriteIndex, "overwrite-index", false, "Replace an existing viewer page")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}

// runLoggingConfig reads the [logging] table from the config file so the
// headless run honors the same levels as serve; --log-json wins over the
// file's format.
func runLoggingConfig(configFile string, logJSON bool) logging.Config {
	loggingConfig := config.LoadLoggingConfig(configFile)
	if logJSON {
		loggingConfig.Format = "json"
	}
	return loggingConfig
}

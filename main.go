package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/streampi/streampi/cmd"
	"github.com/streampi/streampi/internal/config"
	"github.com/streampi/streampi/internal/deploy"
	"github.com/streampi/streampi/internal/events"
	"github.com/streampi/streampi/internal/logging"
	"github.com/streampi/streampi/internal/metrics"
	"github.com/streampi/streampi/internal/process"
	"github.com/streampi/streampi/internal/server"
	"github.com/streampi/streampi/internal/stream"
	"github.com/streampi/streampi/internal/systemd"
	"github.com/streampi/streampi/internal/updater"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port      string `help:"Address to listen on" short:"p" default:":8080" toml:"server.port" env:"SERVER_PORT"`
	Supervise bool   `help:"Supervise FFmpeg in-process instead of relying on a systemd unit" default:"true" toml:"server.supervise" env:"SERVER_SUPERVISE"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Deploy settings
	IndexPath      string `help:"Viewer page path for DASH deployments" default:"/var/lib/streaming/index.html" toml:"deploy.index_path" env:"DEPLOY_INDEX_PATH"`
	OverwriteIndex bool   `help:"Replace an existing viewer page" default:"false" toml:"deploy.overwrite_index" env:"DEPLOY_OVERWRITE_INDEX"`

	// Update settings
	UpdateRepository string `help:"GitHub repository for self-updates" default:"streampi/streampi" toml:"update.repository" env:"UPDATE_REPOSITORY"`
	UpdatePrerelease bool   `help:"Consider prerelease versions when updating" default:"false" toml:"update.prerelease" env:"UPDATE_PRERELEASE"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingStream  string `help:"Stream composer logging level" default:"info" toml:"logging.stream" env:"LOGGING_STREAM"`
	LoggingProcess string `help:"Process supervisor logging level" default:"info" toml:"logging.process" env:"LOGGING_PROCESS"`
	LoggingFFmpeg  string `help:"FFmpeg output logging level" default:"info" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingCamera  string `help:"Camera probing logging level" default:"info" toml:"logging.camera" env:"LOGGING_CAMERA"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingConfig  string `help:"Config watcher logging level" default:"info" toml:"logging.config" env:"LOGGING_CONFIG"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"stream":  opts.LoggingStream,
				"process": opts.LoggingProcess,
				"ffmpeg":  opts.LoggingFFmpeg,
				"camera":  opts.LoggingCamera,
				"api":     opts.LoggingAPI,
				"config":  opts.LoggingConfig,
			},
		})

		logger := logging.GetLogger("main")

		// Compose the FFmpeg command from the [stream] table
		settings, err := config.LoadStreamSettings(opts.Config)
		if err != nil {
			logger.Error("Failed to load stream settings", "error", err, "config", opts.Config)
			os.Exit(1)
		}
		result, err := stream.Compose(settings.ToStreamConfig())
		if err != nil {
			logger.Error("Invalid stream configuration", "error", err)
			os.Exit(1)
		}
		metrics.CommandComposed(string(result.Deployment))
		logger.Info("Composed stream command", "deployment", result.Deployment)

		// Prepare local artifacts (manifest dir, viewer page)
		manifestPath := settings.OutputPath
		if manifestPath == "" {
			manifestPath = stream.DefaultManifestPath
		}
		if err := deploy.Prepare(result.Deployment, deploy.Options{
			ManifestPath: manifestPath,
			IndexPath:    opts.IndexPath,
			VideoSize:    settings.VideoSize,
			Overwrite:    opts.OverwriteIndex,
		}); err != nil {
			logger.Error("Failed to prepare deployment artifacts", "error", err)
			os.Exit(1)
		}

		// Create event bus for in-process event handling
		eventBus := events.New()

		// FFmpeg supervisor, unless the stream runs as a separate unit
		var proc *process.Process
		if opts.Supervise {
			proc = process.New("stream", result.Command, logging.GetLogger("process"))
			proc.SetLogParser(logging.GetLogger("ffmpeg"), stream.ParseLogLevel)
			proc.SetStateHandler(func(info process.Info) {
				switch info.State {
				case process.StateRunning:
					metrics.StreamStarted()
				case process.StateIdle, process.StateError:
					metrics.StreamStopped()
				}
				errMsg := ""
				if info.LastError != nil {
					errMsg = info.LastError.Error()
				}
				eventBus.Publish(events.StreamStateChangedEvent{
					State:        string(info.State),
					PID:          info.PID,
					RestartCount: info.RestartCount,
					Error:        errMsg,
					Timestamp:    time.Now().Format(time.RFC3339),
				})
			})
		}

		// Systemd unit control when the stream runs outside this process
		var sysManager *systemd.Manager
		if proc == nil {
			sysManager, err = systemd.NewManager(context.Background())
			if err != nil {
				logger.Warn("D-Bus unavailable, systemd unit control disabled", "error", err)
				sysManager = nil
			}
		}

		// Self-updater
		upd, err := updater.New(opts.UpdateRepository, opts.UpdatePrerelease)
		if err != nil {
			logger.Warn("Self-update disabled", "error", err)
			upd = nil
		}

		// Hot-reload: recompose on config changes, restart when the command
		// differs
		watcher := config.NewWatcher(
			opts.Config,
			config.LoadStreamSettings,
			logging.GetLogger("config"),
		)
		watcher.OnReload(func(fresh config.StreamSettings) {
			newResult, composeErr := stream.Compose(fresh.ToStreamConfig())
			if composeErr != nil {
				logger.Warn("Reloaded config is invalid, keeping current command", "error", composeErr)
				return
			}
			metrics.ConfigReloaded()
			eventBus.Publish(events.ConfigReloadedEvent{
				Command:    newResult.Command,
				Deployment: string(newResult.Deployment),
				Timestamp:  time.Now().Format(time.RFC3339),
			})

			if prepErr := deploy.Prepare(newResult.Deployment, deploy.Options{
				ManifestPath: fresh.OutputPath,
				IndexPath:    opts.IndexPath,
				VideoSize:    fresh.VideoSize,
				Overwrite:    opts.OverwriteIndex,
			}); prepErr != nil {
				logger.Warn("Failed to prepare deployment artifacts", "error", prepErr)
			}

			switch {
			case proc != nil && newResult.Command != proc.Command():
				logger.Info("Command changed, requesting restart")
				proc.RequestRestart(newResult.Command)
				metrics.StreamRestarted()
			case proc != nil:
				logger.Debug("Config reloaded, command unchanged")
			case sysManager != nil:
				logger.Info("Config changed, restarting stream unit")
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if restartErr := sysManager.RestartUnit(ctx, systemd.StreamUnit); restartErr != nil {
					logger.Warn("Failed to restart stream unit", "error", restartErr)
				} else {
					metrics.StreamRestarted()
				}
			}
		})

		serverOpts := &server.Options{
			AuthUsername: opts.AuthUsername,
			AuthPassword: opts.AuthPassword,
			LoadSettings: func() (config.StreamSettings, error) {
				return config.LoadStreamSettings(opts.Config)
			},
			SaveSettings: func(settings config.StreamSettings) error {
				return config.SaveStreamSettings(opts.Config, settings)
			},
			Systemd:        sysManager,
			Bus:            eventBus,
			Updater:        upd,
			MetricsHandler: metrics.Handler(),
			ManifestDir:    filepath.Dir(manifestPath),
			IndexPath:      opts.IndexPath,
		}
		// Assigned only when non-nil so the interface stays nil otherwise.
		if proc != nil {
			serverOpts.Controller = proc
		}
		apiServer := server.NewServer(serverOpts)

		hooks.OnStart(func() {
			if watchErr := watcher.Start(); watchErr != nil {
				logger.Warn("Failed to start config watcher, hot-reload disabled", "error", watchErr)
			}

			if proc != nil {
				go func() {
					exitCode := proc.RunWithRestart()
					logger.Info("FFmpeg supervisor exited", "exit_code", exitCode)
				}()
			}

			// Tell systemd we are up; a no-op outside a unit.
			_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := apiServer.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

			if stopErr := apiServer.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			if proc != nil {
				proc.Shutdown()
			}
			_ = watcher.Stop()
			if sysManager != nil {
				sysManager.Close()
			}
		})
	})

	cli.Root().AddCommand(cmd.CreateComposeCmd())
	cli.Root().AddCommand(cmd.CreateCamerasCmd())
	cli.Root().AddCommand(cmd.CreateRunCmd())
	cli.Root().AddCommand(cmd.CreateUpdateCmd())
	cli.Root().AddCommand(cmd.CreateVersionCmd())

	cli.Run()
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/streampi/streampi/internal/camera"
	"github.com/streampi/streampi/internal/config"
	"github.com/streampi/streampi/internal/logging"
	"github.com/streampi/streampi/internal/stream"
)

// CreateComposeCmd creates the compose command.
func CreateComposeCmd() *cobra.Command {
	var configFile string
	var autoDetect bool
	var overrides config.StreamSettings

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Print the FFmpeg command for the current configuration",
		Long: `Composes the FFmpeg command line from the [stream] table of the config ` +
			`file, applies any flag overrides, and prints the command and its deployment ` +
			`kind without running anything.`,
		Run: func(cobraCmd *cobra.Command, _ []string) {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			settings, err := config.LoadStreamSettings(configFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
				os.Exit(1)
			}

			if autoDetect {
				ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				applyBestCamera(ctx, &settings)
			}
			applyOverrides(cobraCmd, &settings, &overrides)

			if settings.Device != "" && !camera.Exists(settings.Device) {
				fmt.Fprintf(os.Stderr, "warning: %s does not exist\n", settings.Device)
			}

			result, err := stream.Compose(settings.ToStreamConfig())
			if err != nil {
				fmt.Fprintf(os.Stderr, "invalid stream configuration: %v\n", err)
				os.Exit(1)
			}

			fmt.Println(result.Command)
			fmt.Fprintf(os.Stderr, "deployment: %s\n", result.Deployment)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "config.toml", "Path to configuration file")
	cmd.Flags().BoolVar(&autoDetect, "auto", false, "Probe cameras and fill in device, format, and size")
	cmd.Flags().StringVar(&overrides.Device, "device", "", "V4L2 device path")
	cmd.Flags().StringVar(&overrides.VideoSize, "video-size", "", "Frame size WxH")
	cmd.Flags().StringVar(&overrides.InputFormat, "input-format", "", "Capture format (h264, mjpeg, yuyv422)")
	cmd.Flags().StringVar(&overrides.Delivery, "delivery", "", "Delivery mode (dash, rtsp, rtsp-relay)")
	cmd.Flags().StringVar(&overrides.Codec, "codec", "", "Output codec, or copy")
	cmd.Flags().StringVar(&overrides.Bitrate, "bitrate", "", "Explicit bitrate, e.g. 4M")
	cmd.Flags().StringVar(&overrides.RelayURL, "relay-url", "", "Remote RTSP target")
	cmd.Flags().StringVar(&overrides.OutputPath, "output", "", "Override the output target")
	cmd.Flags().BoolVar(&overrides.DisableHLS, "disable-hls", false, "Skip the HLS side playlist")
	cmd.Flags().StringSliceVar(&overrides.ExtraParams, "extra", nil, "Extra FFmpeg tokens, appended verbatim")

	return cmd
}

// applyBestCamera fills unset capture fields from the best detected camera.
func applyBestCamera(ctx context.Context, settings *config.StreamSettings) {
	best := camera.FindBest(ctx)
	if settings.Device == "" {
		settings.Device = best.Device
	}
	if settings.InputFormat == "" {
		settings.InputFormat = best.InputFormat
	}
	if settings.VideoSize == "" {
		settings.VideoSize = best.VideoSize
	}
}

// applyOverrides copies explicitly set flags over the loaded settings.
func applyOverrides(cobraCmd *cobra.Command, settings, overrides *config.StreamSettings) {
	if cobraCmd.Flags().Changed("device") {
		settings.Device = overrides.Device
	}
	if cobraCmd.Flags().Changed("video-size") {
		settings.VideoSize = overrides.VideoSize
	}
	if cobraCmd.Flags().Changed("input-format") {
		settings.InputFormat = overrides.InputFormat
	}
	if cobraCmd.Flags().Changed("delivery") {
		settings.Delivery = overrides.Delivery
	}
	if cobraCmd.Flags().Changed("codec") {
		settings.Codec = overrides.Codec
	}
	if cobraCmd.Flags().Changed("bitrate") {
		settings.Bitrate = overrides.Bitrate
	}
	if cobraCmd.Flags().Changed("relay-url") {
		settings.RelayURL = overrides.RelayURL
	}
	if cobraCmd.Flags().Changed("output") {
		settings.OutputPath = overrides.OutputPath
	}
	if cobraCmd.Flags().Changed("disable-hls") {
		settings.DisableHLS = overrides.DisableHLS
	}
	if cobraCmd.Flags().Changed("extra") {
		settings.ExtraParams = overrides.ExtraParams
	}
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/streampi/streampi/internal/camera"
	"github.com/streampi/streampi/internal/logging"
)

// CreateCamerasCmd creates the cameras command.
func CreateCamerasCmd() *cobra.Command {
	var bestOnly bool

	cmd := &cobra.Command{
		Use:   "cameras",
		Short: "List connected cameras and their capture formats",
		Long: `Probes /dev/video* devices with FFmpeg and prints each camera's capture ` +
			`formats with the best usable resolution per format. The preferred format is ` +
			`the one the compose command picks with --auto.`,
		Run: func(_ *cobra.Command, _ []string) {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if bestOnly {
				best := camera.FindBest(ctx)
				fmt.Printf("%s %s %s\n", best.Device, best.InputFormat, best.VideoSize)
				return
			}

			probes, err := camera.FindAll(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "camera probe failed: %v\n", err)
				os.Exit(1)
			}
			if len(probes) == 0 {
				fmt.Println("no cameras found")
				return
			}

			for _, probe := range probes {
				selected := camera.SelectFormat(probe)
				fmt.Printf("%s\n", probe.Device)

				formats := make([]string, 0, len(probe.Formats))
				for format := range probe.Formats {
					formats = append(formats, format)
				}
				sort.Strings(formats)

				for _, format := range formats {
					marker := " "
					if format == selected.InputFormat {
						marker = "*"
					}
					fmt.Printf("  %s %-10s %s\n", marker, format, probe.Formats[format])
				}
			}
		},
	}

	cmd.Flags().BoolVar(&bestOnly, "best", false, "Print only the preferred device, format, and size")

	return cmd
}

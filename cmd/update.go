package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/streampi/streampi/internal/logging"
	"github.com/streampi/streampi/internal/updater"
)

// CreateUpdateCmd creates the update command.
func CreateUpdateCmd() *cobra.Command {
	var repository string
	var prerelease bool
	var apply bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Check for a newer release, optionally install it",
		Run: func(_ *cobra.Command, _ []string) {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			upd, err := updater.New(repository, prerelease)
			if err != nil {
				fmt.Fprintf(os.Stderr, "updater init failed: %v\n", err)
				os.Exit(1)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			if apply {
				info, err := upd.Apply(ctx)
				if err != nil {
					fmt.Fprintf(os.Stderr, "update failed: %v\n", err)
					os.Exit(1)
				}
				if !info.UpdateAvailable {
					fmt.Printf("already up to date (%s)\n", info.CurrentVersion)
					return
				}
				fmt.Printf("updated %s -> %s\n", info.CurrentVersion, info.LatestVersion)
				return
			}

			info, err := upd.Check(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "update check failed: %v\n", err)
				os.Exit(1)
			}
			if !info.UpdateAvailable {
				fmt.Printf("up to date (%s)\n", info.CurrentVersion)
				return
			}
			fmt.Printf("update available: %s -> %s\n", info.CurrentVersion, info.LatestVersion)
			if info.ReleaseURL != "" {
				fmt.Println(info.ReleaseURL)
			}
		},
	}

	cmd.Flags().StringVar(&repository, "repository", updater.DefaultRepository, "GitHub repository (owner/name)")
	cmd.Flags().BoolVar(&prerelease, "prerelease", false, "Consider prerelease versions")
	cmd.Flags().BoolVar(&apply, "apply", false, "Download and install the latest release")

	return cmd
}

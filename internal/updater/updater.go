// Package updater self-updates the binary from GitHub releases.
package updater

import (
	"context"
	"fmt"
	"time"

	"github.com/creativeprojects/go-selfupdate"

	"github.com/streampi/streampi/internal/logging"
	"github.com/streampi/streampi/internal/version"
)

// DefaultRepository is the release source.
const DefaultRepository = "streampi/streampi"

// UpdateInfo describes the result of an update check.
type UpdateInfo struct {
	CurrentVersion  string     `json:"current_version"`
	LatestVersion   string     `json:"latest_version"`
	ReleaseNotes    string     `json:"release_notes,omitempty"`
	ReleaseURL      string     `json:"release_url,omitempty"`
	PublishedAt     time.Time `json:"published_at,omitzero"`
	UpdateAvailable bool      `json:"update_available"`
}

// Updater checks GitHub releases and replaces the running binary in place.
type Updater struct {
	repository selfupdate.Repository
	updater    *selfupdate.Updater
}

// New creates an updater for the given "owner/repo" slug.
func New(repository string, prerelease bool) (*Updater, error) {
	if repository == "" {
		repository = DefaultRepository
	}

	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub source: %w", err)
	}

	upd, err := selfupdate.NewUpdater(selfupdate.Config{
		Source:     source,
		Prerelease: prerelease,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create updater: %w", err)
	}

	return &Updater{
		repository: selfupdate.ParseSlug(repository),
		updater:    upd,
	}, nil
}

// Check queries the latest release and compares it to the running version.
// Dev builds always count as outdated.
func (u *Updater) Check(ctx context.Context) (*UpdateInfo, error) {
	current := version.Version

	release, found, err := u.updater.DetectLatest(ctx, u.repository)
	if err != nil {
		return nil, fmt.Errorf("failed to check for updates: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("repository has no releases")
	}

	info := &UpdateInfo{
		CurrentVersion:  current,
		LatestVersion:   release.Version(),
		UpdateAvailable: current == "dev" || release.GreaterThan(current),
	}
	if info.UpdateAvailable {
		info.ReleaseNotes = release.ReleaseNotes
		info.ReleaseURL = release.URL
		info.PublishedAt = release.PublishedAt
	}
	return info, nil
}

// Apply downloads the latest release and replaces the current executable.
// The caller decides when to restart; under systemd exiting is enough.
func (u *Updater) Apply(ctx context.Context) (*UpdateInfo, error) {
	log := logging.GetLogger("updater")

	info, err := u.Check(ctx)
	if err != nil {
		return nil, err
	}
	if !info.UpdateAvailable {
		return info, nil
	}

	release, found, err := u.updater.DetectLatest(ctx, u.repository)
	if err != nil || !found {
		return nil, fmt.Errorf("failed to resolve release: %w", err)
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return nil, fmt.Errorf("failed to locate executable: %w", err)
	}

	log.Info("Applying update", "from", info.CurrentVersion, "to", info.LatestVersion)
	if err := u.updater.UpdateTo(ctx, release, exe); err != nil {
		return nil, fmt.Errorf("failed to apply update: %w", err)
	}

	log.Info("Update applied", "version", release.Version())
	return info, nil
}

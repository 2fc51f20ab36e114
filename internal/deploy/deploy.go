// Package deploy prepares the local artifacts each deployment kind needs
// before FFmpeg starts: the shared-memory manifest directory and the DASH
// viewer page. RTSP deployments produce no local artifacts.
package deploy

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/streampi/streampi/internal/logging"
	"github.com/streampi/streampi/internal/stream"
)

// DefaultIndexPath is where the viewer page lands; the web server serves it
// alongside the manifest directory.
const DefaultIndexPath = "/var/lib/streaming/index.html"

// Options controls artifact preparation.
type Options struct {
	ManifestPath string // DASH manifest target, defaults to stream.DefaultManifestPath
	IndexPath    string // viewer page target, defaults to DefaultIndexPath
	VideoSize    string // frame size used to size the viewer, e.g. "1280x720"
	Overwrite    bool   // replace an existing viewer page
}

// Prepare creates the artifacts a composed command needs. It is idempotent:
// existing directories are left alone and the viewer page is only replaced
// when Overwrite is set.
func Prepare(deployment stream.Deployment, opts Options) error {
	log := logging.GetLogger("deploy")

	switch deployment {
	case stream.DeployManifest:
		manifestPath := opts.ManifestPath
		if manifestPath == "" {
			manifestPath = stream.DefaultManifestPath
		}
		if err := EnsureManifestDir(manifestPath); err != nil {
			return err
		}

		indexPath := opts.IndexPath
		if indexPath == "" {
			indexPath = DefaultIndexPath
		}
		return WriteViewerPage(indexPath, opts.VideoSize, opts.Overwrite)

	case stream.DeployRTSPServer:
		log.Info("RTSP delivery selected, expecting a local RTSP server on rtsp://localhost:8554")
		return nil

	case stream.DeployRemote:
		log.Info("Relaying to a remote RTSP server, nothing to prepare locally")
		return nil

	default:
		return fmt.Errorf("deploy: unknown deployment kind %q", deployment)
	}
}

// EnsureManifestDir creates the directory holding the DASH manifest and
// segments. /dev/shm keeps segment churn off the SD card.
func EnsureManifestDir(manifestPath string) error {
	dir := filepath.Dir(manifestPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("deploy: failed to create manifest directory %s: %w", dir, err)
	}
	return nil
}

package deploy

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/streampi/streampi/internal/logging"
	"github.com/streampi/streampi/internal/stream"
)

// maxViewerWidth keeps the player usable on laptop screens even when the
// camera captures wider frames.
const maxViewerWidth = 1200

var viewerTemplate = template.Must(template.New("viewer").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Raspberry Pi Camera</title>
    <style>
        html body .page { height: 100%; width: 100%; }
        video { width: {{.Width}}px; }
        .wrapper { width: {{.Width}}px; margin: auto; }
    </style>
</head>
<body>
<div class="page">
    <div class="wrapper">
        <h1>Raspberry Pi Camera</h1>
        <video data-dashjs-player autoplay controls src="manifest.mpd" type="application/dash+xml"></video>
    </div>
</div>
<script src="https://cdn.dashjs.org/latest/dash.all.min.js"></script>
</body>
</html>
`))

type viewerData struct {
	Width int
}

// WriteViewerPage renders the dash.js player page sized to the stream. An
// existing page is kept unless overwrite is set.
func WriteViewerPage(path, videoSize string, overwrite bool) error {
	log := logging.GetLogger("deploy")

	width := maxViewerWidth
	if videoSize != "" {
		w, _, err := stream.ParseVideoSize(videoSize)
		if err != nil {
			return fmt.Errorf("deploy: %w", err)
		}
		if w < maxViewerWidth {
			width = w
		}
	}

	if _, err := os.Stat(path); err == nil {
		if !overwrite {
			log.Info("Viewer page already exists, not overwriting", "path", path)
			return nil
		}
		log.Warn("Viewer page exists, overwriting", "path", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("deploy: failed to create viewer directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("deploy: failed to create viewer page: %w", err)
	}
	defer f.Close()

	if err := viewerTemplate.Execute(f, viewerData{Width: width}); err != nil {
		return fmt.Errorf("deploy: failed to render viewer page: %w", err)
	}
	return nil
}

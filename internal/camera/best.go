package camera

import (
	"context"
	"path/filepath"
	"sort"
)

// formatPreference orders capture formats by how cheap they are to stream:
// native h264 can be remuxed with no transcoding at all, mjpeg decodes
// cheaply, raw formats cost the most.
var formatPreference = []string{"h264", "mjpeg", "yuyv422", "yuv420p"}

// Selection is the device/format/resolution triple the node streams by
// default when the user specifies nothing.
type Selection struct {
	Device      string
	InputFormat string
	VideoSize   string
}

// fallbackSelection assumes a Pi camera module will be connected later.
var fallbackSelection = Selection{
	Device:      "/dev/video0",
	InputFormat: "h264",
	VideoSize:   "1920x1080",
}

// FindAll probes every /dev/video* node and returns the capture devices.
func FindAll(ctx context.Context) ([]Probe, error) {
	paths, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var probes []Probe
	for _, path := range paths {
		probe, err := ProbeDevice(ctx, path)
		if err != nil || probe == nil {
			continue
		}
		probes = append(probes, *probe)
	}
	return probes, nil
}

// FindBest selects the most capable capture device: any device with native
// h264 wins, then the preferred format list decides. When no capture device
// is found the Pi camera fallback is returned so setup can still proceed.
func FindBest(ctx context.Context) Selection {
	probes, err := FindAll(ctx)
	if err != nil || len(probes) == 0 {
		return fallbackSelection
	}

	best := probes[0]
	for _, probe := range probes[1:] {
		_, bestHasH264 := best.Formats["h264"]
		if _, ok := probe.Formats["h264"]; ok && !bestHasH264 {
			best = probe
		}
	}

	return SelectFormat(best)
}

// SelectFormat picks the preferred format/resolution pair from a probe.
func SelectFormat(probe Probe) Selection {
	for _, format := range formatPreference {
		if res, ok := probe.Formats[format]; ok {
			return Selection{Device: probe.Device, InputFormat: format, VideoSize: res}
		}
	}

	// Nothing preferred: take any format, in stable order.
	names := make([]string, 0, len(probe.Formats))
	for name := range probe.Formats {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > 0 {
		return Selection{Device: probe.Device, InputFormat: names[0], VideoSize: probe.Formats[names[0]]}
	}
	return fallbackSelection
}

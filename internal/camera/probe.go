package camera

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/streampi/streampi/internal/logging"
)

// Probe holds the capture formats a single V4L2 device advertises, with the
// best usable resolution per format.
type Probe struct {
	Device  string
	Formats map[string]string // input format name -> resolution (WxH)
}

// maxWidth caps parsed capture ranges: sensors advertising continuous ranges
// up to silly widths get pinned to 1080p, which is what the encoder and the
// Pi can realistically sustain.
const maxWidth = 2000

const cappedResolution = "1920x1080"

// ProbeDevice asks FFmpeg to list the formats a device supports and parses
// the result. Returns nil (no error) when the path is not a video capture
// device, e.g. a metadata node.
func ProbeDevice(ctx context.Context, device string) (*Probe, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-f", "video4linux2", "-list_formats", "all", "-i", device)
	// FFmpeg reports the format table on stderr and exits non-zero because
	// no output file was given; the exit code is not an error here.
	out, _ := cmd.CombinedOutput()

	text := string(out)
	if strings.Contains(text, "Not a video capture device") {
		return nil, nil
	}
	if strings.Contains(text, "No such file or directory") {
		return nil, fmt.Errorf("camera: %s does not exist", device)
	}

	formats := ParseListFormats(text)
	if len(formats) == 0 {
		return nil, nil
	}
	return &Probe{Device: device, Formats: formats}, nil
}

// ParseListFormats parses FFmpeg's "-list_formats all" table. Lines look like
//
//	[video4linux2,v4l2 @ 0xf0cf70] Raw       :     yuyv422 :           YUYV 4:2:2 : {32-2592, 2}x{32-1944, 2}
//	[video4linux2,v4l2 @ 0xf0cf70] Compressed:       mjpeg :          Motion-JPEG : 1280x720 640x480
//
// and map to format name -> best resolution. Unsupported formats are skipped.
func ParseListFormats(output string) map[string]string {
	log := logging.GetLogger("camera")
	formats := make(map[string]string)

	for _, line := range strings.Split(output, "\n") {
		if !strings.HasPrefix(line, "[video4linux2") || strings.Count(line, ": ") <= 2 {
			continue
		}
		_, rest, ok := strings.Cut(line, "]")
		if !ok {
			continue
		}
		fields := strings.Split(rest, ": ")
		if len(fields) < 4 {
			log.Debug("Skipping unparseable format line", "line", line)
			continue
		}

		name := strings.TrimSpace(fields[1])
		if name == "Unsupported" || name == "" {
			continue
		}
		formats[name] = bestResolution(strings.TrimSpace(fields[3]))
	}

	return formats
}

// bestResolution picks the largest usable capture size from either a
// continuous range ("{32-2592, 2}x{32-1944, 2}") or a discrete list
// ("640x480 1280x720"). Oversized ranges fall back to 1080p.
func bestResolution(spec string) string {
	if strings.Contains(spec, "{") {
		wSpec, hSpec, ok := strings.Cut(spec, "x")
		if !ok {
			return cappedResolution
		}
		w := rangeUpperBound(wSpec)
		h := rangeUpperBound(hSpec)
		if w == 0 || h == 0 || w >= maxWidth {
			return cappedResolution
		}
		return fmt.Sprintf("%dx%d", w, h)
	}

	var bestW, bestH int
	for _, option := range strings.Fields(spec) {
		w, h, ok := strings.Cut(option, "x")
		if !ok {
			continue
		}
		width, werr := strconv.Atoi(w)
		height, herr := strconv.Atoi(h)
		if werr != nil || herr != nil {
			continue
		}
		if width*height > bestW*bestH {
			bestW, bestH = width, height
		}
	}
	if bestW == 0 || bestW >= maxWidth {
		return cappedResolution
	}
	return fmt.Sprintf("%dx%d", bestW, bestH)
}

// rangeUpperBound extracts the upper bound from a "{min-max, step}" range.
func rangeUpperBound(spec string) int {
	start := strings.Index(spec, "-")
	end := strings.Index(spec, ",")
	if start == -1 || end == -1 || end <= start {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(spec[start+1 : end]))
	if err != nil {
		return 0
	}
	return n
}

// Exists reports whether a device path is present on the system.
func Exists(device string) bool {
	_, err := os.Stat(device)
	return err == nil
}

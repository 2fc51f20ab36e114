package camera

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleListFormats = `[video4linux2,v4l2 @ 0xf0cf70] Raw       :     yuyv422 :           YUYV 4:2:2 : {32-2592, 2}x{32-1944, 2}
[video4linux2,v4l2 @ 0xf0cf70] Compressed:       mjpeg :          Motion-JPEG : {32-2592, 2}x{32-1944, 2}
[video4linux2,v4l2 @ 0xf0cf70] Compressed:        h264 :                H.264 : {32-2592, 2}x{32-1944, 2}
/dev/video0: Immediate exit requested
`

const discreteListFormats = `[video4linux2,v4l2 @ 0x55aa] Raw       :     yuyv422 :           YUYV 4:2:2 : 640x480 1280x720 320x240
[video4linux2,v4l2 @ 0x55aa] Compressed:       mjpeg :          Motion-JPEG : 1280x720 640x480
[video4linux2,v4l2 @ 0x55aa] Raw       : Unsupported :        GREY greyscale : 640x480
`

func TestParseListFormatsRanges(t *testing.T) {
	formats := ParseListFormats(sampleListFormats)

	if len(formats) != 3 {
		t.Fatalf("ParseListFormats() found %d formats, want 3: %v", len(formats), formats)
	}

	// Range tops out at 2592 which exceeds the width cap, so every format
	// pins to 1080p.
	for _, name := range []string{"yuyv422", "mjpeg", "h264"} {
		if formats[name] != "1920x1080" {
			t.Errorf("formats[%q] = %q, want 1920x1080", name, formats[name])
		}
	}
}

func TestParseListFormatsDiscrete(t *testing.T) {
	formats := ParseListFormats(discreteListFormats)

	if got := formats["yuyv422"]; got != "1280x720" {
		t.Errorf("formats[yuyv422] = %q, want largest discrete option 1280x720", got)
	}
	if got := formats["mjpeg"]; got != "1280x720" {
		t.Errorf("formats[mjpeg] = %q, want 1280x720", got)
	}
	if _, ok := formats["Unsupported"]; ok {
		t.Error("ParseListFormats() must skip unsupported formats")
	}
}

func TestParseListFormatsSmallRange(t *testing.T) {
	output := `[video4linux2,v4l2 @ 0x1] Raw       :     yuyv422 :           YUYV 4:2:2 : {48-1280, 2}x{32-720, 2}
`
	formats := ParseListFormats(output)
	if got := formats["yuyv422"]; got != "1280x720" {
		t.Errorf("formats[yuyv422] = %q, want range upper bound 1280x720", got)
	}
}

func TestParseListFormatsIgnoresNoise(t *testing.T) {
	output := `Input #0, video4linux2,v4l2, from '/dev/video0':
[video4linux2,v4l2 @ 0x1] garbage line without separators
`
	if formats := ParseListFormats(output); len(formats) != 0 {
		t.Errorf("ParseListFormats() = %v, want none", formats)
	}
}

func TestSelectFormatPreference(t *testing.T) {
	probe := Probe{
		Device: "/dev/video2",
		Formats: map[string]string{
			"yuyv422": "1280x720",
			"h264":    "1920x1080",
			"mjpeg":   "1280x720",
		},
	}

	sel := SelectFormat(probe)
	if sel.InputFormat != "h264" || sel.VideoSize != "1920x1080" || sel.Device != "/dev/video2" {
		t.Errorf("SelectFormat() = %+v, want h264 at 1920x1080 on /dev/video2", sel)
	}

	delete(probe.Formats, "h264")
	sel = SelectFormat(probe)
	if sel.InputFormat != "mjpeg" {
		t.Errorf("SelectFormat() = %+v, want mjpeg after h264 removed", sel)
	}
}

func TestSelectFormatUnpreferredFallback(t *testing.T) {
	probe := Probe{
		Device:  "/dev/video1",
		Formats: map[string]string{"nv12": "1280x720"},
	}

	sel := SelectFormat(probe)
	if sel.InputFormat != "nv12" || sel.VideoSize != "1280x720" {
		t.Errorf("SelectFormat() = %+v, want the only advertised format", sel)
	}
}

func TestExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "video0")
	if Exists(path) {
		t.Errorf("Exists(%q) = true before creation", path)
	}

	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("create device stand-in: %v", err)
	}
	if !Exists(path) {
		t.Errorf("Exists(%q) = false after creation", path)
	}
}

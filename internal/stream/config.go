package stream

import "fmt"

// DeliveryMode selects how the encoded stream leaves the box.
type DeliveryMode string

const (
	// DeliveryDASH writes a segmented MPEG-DASH manifest (with an optional
	// HLS playlist sidecar) into a local directory served over HTTP.
	DeliveryDASH DeliveryMode = "dash"
	// DeliveryRTSP pushes to a locally hosted RTSP server.
	DeliveryRTSP DeliveryMode = "rtsp"
	// DeliveryRTSPRelay pushes to a remote RTSP relay; nothing is hosted locally.
	DeliveryRTSPRelay DeliveryMode = "rtsp-relay"
)

// CodecCopy re-muxes the camera bitstream unchanged. No transcoding happens,
// so rate-control flags are meaningless and never emitted for it.
const CodecCopy = "copy"

// Default output targets per delivery mode. The manifest lives in shared
// memory so segment churn never touches the SD card.
const (
	DefaultManifestPath = "/dev/shm/streaming/manifest.mpd"
	DefaultRTSPURL      = "rtsp://localhost:8554/streaming"
)

// Config describes a single camera stream. It is assembled once per
// invocation from CLI flags, config file, and probe defaults, and is never
// mutated after the command is composed.
type Config struct {
	Device      string       // V4L2 device path, e.g. /dev/video0
	VideoSize   string       // WxH, e.g. 1280x720
	InputFormat string       // capture input format: h264, mjpeg, yuyv422, ...
	Delivery    DeliveryMode // defaults to DeliveryDASH when empty
	Codec       string       // "copy" or an encoder name like h264_v4l2m2m
	Bitrate     string       // "" derives from resolution; ignored when Codec is copy
	ExtraParams []string     // appended verbatim after all composer-derived flags
	RelayURL    string       // non-empty forces DeliveryRTSPRelay
	OutputPath  string       // overrides the delivery-mode default target
	DisableHLS  bool         // dash only: skip the HLS playlist sidecar
}

// ConfigError reports the first invalid configuration field found while
// composing. Checks run in a fixed order: device, frame size, codec,
// delivery-mode consistency.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid stream configuration: %s: %s", e.Field, e.Reason)
}

package stream

import (
	"fmt"
	"strconv"
	"strings"
)

// Deployment tags which local artifacts the caller should set up for a
// composed command. The composer never writes anything itself.
type Deployment string

const (
	// DeployManifest means a local web server hosts the manifest directory
	// and viewer page.
	DeployManifest Deployment = "manifest"
	// DeployRTSPServer means a locally hosted RTSP server receives the stream.
	DeployRTSPServer Deployment = "rtsp-server"
	// DeployRemote means the stream is pushed to a remote relay and no local
	// delivery artifacts exist at all.
	DeployRemote Deployment = "remote"
)

// Result is a composed FFmpeg invocation plus the deployment artifacts it
// expects.
type Result struct {
	Command    string
	Deployment Deployment
}

// Compose turns a Config into the full FFmpeg command line and a deployment
// tag. It is a pure function: no I/O, deterministic, and safe to call
// repeatedly with the same input.
//
// Flag order is fixed: input device flags, input format, frame size, device
// path, stream mapping, codec, rate control (transcoding only), extra
// parameter tokens verbatim, then the delivery-specific output target. Extra
// tokens come after everything the composer derives so callers can override
// any earlier flag (FFmpeg's last-flag-wins applies; nothing is validated or
// de-duplicated).
func Compose(cfg Config) (Result, error) {
	if cfg.Device == "" {
		return Result{}, &ConfigError{Field: "device", Reason: "capture device path is required"}
	}

	if _, _, err := ParseVideoSize(cfg.VideoSize); err != nil {
		return Result{}, err
	}

	if cfg.Codec == "" {
		return Result{}, &ConfigError{Field: "codec", Reason: "codec is required (use \"copy\" to avoid transcoding)"}
	}

	delivery := cfg.Delivery
	if cfg.RelayURL != "" {
		// A remote relay URL always wins: nothing is hosted locally.
		delivery = DeliveryRTSPRelay
	}
	if delivery == "" {
		delivery = DeliveryDASH
	}

	switch delivery {
	case DeliveryDASH, DeliveryRTSP:
	case DeliveryRTSPRelay:
		if cfg.RelayURL == "" {
			return Result{}, &ConfigError{Field: "delivery", Reason: "relay delivery selected but no relay URL given"}
		}
	default:
		return Result{}, &ConfigError{Field: "delivery", Reason: fmt.Sprintf("unknown delivery mode %q", string(delivery))}
	}

	var cmd strings.Builder
	cmd.WriteString("ffmpeg -nostdin -hide_banner -loglevel level+info")

	// Input
	cmd.WriteString(" -f v4l2")
	if cfg.InputFormat != "" {
		cmd.WriteString(" -input_format " + cfg.InputFormat)
	}
	cmd.WriteString(" -s " + cfg.VideoSize)
	cmd.WriteString(" -i " + cfg.Device)

	// Stream selection and codec
	cmd.WriteString(" -map 0:v")
	cmd.WriteString(" -c:v " + cfg.Codec)

	// Rate control only applies when transcoding.
	if cfg.Codec != CodecCopy {
		bitrate := cfg.Bitrate
		if bitrate == "" {
			w, h, _ := ParseVideoSize(cfg.VideoSize)
			bitrate = fmt.Sprintf("%dk", DeriveBitrateKbit(w, h))
		} else {
			bitrate = normalizeBitrate(bitrate)
		}
		cmd.WriteString(" -b:v " + bitrate)
		if buf := bufferSize(bitrate); buf != "" {
			cmd.WriteString(" -bufsize " + buf)
		}
	}

	// Caller-supplied tokens, verbatim and in order.
	for _, tok := range cfg.ExtraParams {
		if tok != "" {
			cmd.WriteString(" " + tok)
		}
	}

	var deployment Deployment
	switch delivery {
	case DeliveryDASH:
		path := cfg.OutputPath
		if path == "" {
			path = DefaultManifestPath
		}
		cmd.WriteString(" -f dash -remove_at_exit 1 -window_size 5 -use_timeline 1 -use_template 1")
		if !cfg.DisableHLS {
			cmd.WriteString(" -hls_playlist 1")
		}
		cmd.WriteString(" " + path)
		deployment = DeployManifest

	case DeliveryRTSP:
		path := cfg.OutputPath
		if path == "" {
			path = DefaultRTSPURL
		}
		cmd.WriteString(" -f rtsp " + path)
		deployment = DeployRTSPServer

	case DeliveryRTSPRelay:
		cmd.WriteString(" -f rtsp " + cfg.RelayURL)
		deployment = DeployRemote
	}

	return Result{Command: cmd.String(), Deployment: deployment}, nil
}

// ParseVideoSize splits a WxH frame size string into positive dimensions.
func ParseVideoSize(size string) (width, height int, err error) {
	w, h, ok := strings.Cut(size, "x")
	if !ok {
		return 0, 0, &ConfigError{Field: "video_size", Reason: fmt.Sprintf("%q is not WIDTHxHEIGHT", size)}
	}
	width, werr := strconv.Atoi(w)
	height, herr := strconv.Atoi(h)
	if werr != nil || herr != nil || width <= 0 || height <= 0 {
		return 0, 0, &ConfigError{Field: "video_size", Reason: fmt.Sprintf("%q is not a positive WIDTHxHEIGHT pair", size)}
	}
	return width, height, nil
}

// normalizeBitrate appends a kilobit suffix to bare numeric bitrates so
// "1800" means 1800k, matching what users expect from the bitrate flag.
func normalizeBitrate(bitrate string) string {
	switch bitrate[len(bitrate)-1] {
	case 'k', 'K', 'm', 'M', 'g', 'G':
		return bitrate
	}
	return bitrate + "k"
}

// bufferSize returns a rate-control buffer twice the bitrate, keeping the
// unit suffix. Returns "" when the bitrate's numeric part doesn't parse.
func bufferSize(bitrate string) string {
	if len(bitrate) < 2 {
		return ""
	}
	n, err := strconv.Atoi(bitrate[:len(bitrate)-1])
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%d%c", n*2, bitrate[len(bitrate)-1])
}

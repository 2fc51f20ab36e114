package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/streampi/streampi/internal/config"
	"github.com/streampi/streampi/internal/metrics"
	"github.com/streampi/streampi/internal/stream"
	"github.com/streampi/streampi/internal/systemd"
)

// StreamStatus reports the configured command and the process state.
type StreamStatus struct {
	Command      string `json:"command" doc:"FFmpeg command composed from the current config"`
	Deployment   string `json:"deployment" example:"manifest" doc:"Deployment kind"`
	State        string `json:"state" example:"running" doc:"Process or unit state"`
	PID          int    `json:"pid,omitempty" doc:"FFmpeg process ID when supervised"`
	RestartCount int    `json:"restart_count,omitempty" doc:"Restarts since startup"`
	StartedAt    string `json:"started_at,omitempty" doc:"Last start time, RFC 3339"`
}

// StreamStatusResponse wraps StreamStatus.
type StreamStatusResponse struct {
	Body StreamStatus
}

// StreamSettingsBody is a stream configuration as it appears in request
// bodies, mirroring the [stream] config table.
type StreamSettingsBody struct {
	Device      string   `json:"device" example:"/dev/video0" doc:"V4L2 device path"`
	VideoSize   string   `json:"video_size" example:"1280x720" doc:"Frame size WxH"`
	InputFormat string   `json:"input_format,omitempty" example:"mjpeg" doc:"Capture format"`
	Delivery    string   `json:"delivery,omitempty" example:"dash" doc:"dash, rtsp, or rtsp-relay"`
	Codec       string   `json:"codec" example:"h264_v4l2m2m" doc:"Output codec, or copy"`
	Bitrate     string   `json:"bitrate,omitempty" example:"4M" doc:"Explicit bitrate; derived from frame size when empty"`
	ExtraParams []string `json:"extra_params,omitempty" doc:"Extra FFmpeg tokens, appended verbatim"`
	RelayURL    string   `json:"relay_url,omitempty" doc:"Remote RTSP target; forces rtsp-relay"`
	OutputPath  string   `json:"output_path,omitempty" doc:"Override the default output target"`
	DisableHLS  bool     `json:"disable_hls,omitempty" doc:"Skip the HLS side playlist"`
}

func (b StreamSettingsBody) toSettings() config.StreamSettings {
	return config.StreamSettings{
		Device:      b.Device,
		VideoSize:   b.VideoSize,
		InputFormat: b.InputFormat,
		Delivery:    b.Delivery,
		Codec:       b.Codec,
		Bitrate:     b.Bitrate,
		ExtraParams: b.ExtraParams,
		RelayURL:    b.RelayURL,
		OutputPath:  b.OutputPath,
		DisableHLS:  b.DisableHLS,
	}
}

// ComposeRequest is a stream configuration to preview.
type ComposeRequest struct {
	Body StreamSettingsBody
}

// UpdateSettingsRequest replaces the persisted stream settings.
type UpdateSettingsRequest struct {
	Body StreamSettingsBody
}

// ComposeResponse is the composed command and its deployment kind.
type ComposeResponse struct {
	Body struct {
		Command    string `json:"command" doc:"Composed FFmpeg command line"`
		Deployment string `json:"deployment" example:"manifest" doc:"Deployment kind"`
	}
}

// RestartResponse reports how a restart was delivered.
type RestartResponse struct {
	Body struct {
		Restarted bool   `json:"restarted" doc:"Whether a restart was triggered"`
		Via       string `json:"via" example:"supervisor" doc:"supervisor or systemd"`
		Command   string `json:"command,omitempty" doc:"Recomposed command the stream restarts with"`
	}
}

func (s *Server) registerStreamRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-stream-status",
		Method:      http.MethodGet,
		Path:        "/api/stream",
		Summary:     "Stream status",
		Tags:        []string{"stream"},
		Security:    withAuth(),
		Errors:      []int{401, 422, 500},
	}, s.handleStreamStatus)

	huma.Register(s.api, huma.Operation{
		OperationID: "compose-command",
		Method:      http.MethodPost,
		Path:        "/api/stream/compose",
		Summary:     "Preview FFmpeg command",
		Description: "Compose the FFmpeg command for a configuration without running anything",
		Tags:        []string{"stream"},
		Security:    withAuth(),
		Errors:      []int{401, 422},
	}, s.handleCompose)

	if s.options.SaveSettings != nil {
		huma.Register(s.api, huma.Operation{
			OperationID: "update-stream-settings",
			Method:      http.MethodPut,
			Path:        "/api/stream",
			Summary:     "Update stream settings",
			Description: "Validate and persist stream settings; the config watcher applies them",
			Tags:        []string{"stream"},
			Security:    withAuth(),
			Errors:      []int{401, 422, 500},
		}, s.handleUpdateSettings)
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "restart-stream",
		Method:      http.MethodPost,
		Path:        "/api/stream/restart",
		Summary:     "Restart the stream",
		Description: "Recompose from the config file and restart FFmpeg",
		Tags:        []string{"stream"},
		Security:    withAuth(),
		Errors:      []int{401, 422, 500, 503},
	}, s.handleRestart)
}

func (s *Server) handleStreamStatus(ctx context.Context, _ *struct{}) (*StreamStatusResponse, error) {
	result, err := s.composeFromSettings()
	if err != nil {
		return nil, err
	}

	resp := &StreamStatusResponse{}
	resp.Body.Command = result.Command
	resp.Body.Deployment = string(result.Deployment)

	switch {
	case s.options.Controller != nil:
		info := s.options.Controller.Info()
		resp.Body.State = string(info.State)
		resp.Body.PID = info.PID
		resp.Body.RestartCount = info.RestartCount
		if !info.StartedAt.IsZero() {
			resp.Body.StartedAt = info.StartedAt.Format(time.RFC3339)
		}
	case s.options.Systemd != nil:
		state, err := s.options.Systemd.UnitState(ctx, systemd.StreamUnit)
		if err != nil {
			s.logger.Warn("Failed to query unit state", "error", err)
			state = "unknown"
		}
		resp.Body.State = state
	default:
		resp.Body.State = "unknown"
	}
	return resp, nil
}

func (s *Server) handleCompose(_ context.Context, input *ComposeRequest) (*ComposeResponse, error) {
	result, err := stream.Compose(input.Body.toSettings().ToStreamConfig())
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("invalid stream configuration", err)
	}
	metrics.CommandComposed(string(result.Deployment))

	resp := &ComposeResponse{}
	resp.Body.Command = result.Command
	resp.Body.Deployment = string(result.Deployment)
	return resp, nil
}

// handleUpdateSettings validates incoming settings by composing them, then
// persists the [stream] table. The restart happens through the watcher, so
// file edits and API updates follow the same path.
func (s *Server) handleUpdateSettings(_ context.Context, input *UpdateSettingsRequest) (*ComposeResponse, error) {
	settings := input.Body.toSettings()
	result, err := stream.Compose(settings.ToStreamConfig())
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("invalid stream configuration", err)
	}

	if err := s.options.SaveSettings(settings); err != nil {
		return nil, huma.Error500InternalServerError("failed to save stream config", err)
	}
	metrics.CommandComposed(string(result.Deployment))

	resp := &ComposeResponse{}
	resp.Body.Command = result.Command
	resp.Body.Deployment = string(result.Deployment)
	return resp, nil
}

func (s *Server) handleRestart(ctx context.Context, _ *struct{}) (*RestartResponse, error) {
	result, err := s.composeFromSettings()
	if err != nil {
		return nil, err
	}

	resp := &RestartResponse{}
	switch {
	case s.options.Controller != nil:
		s.options.Controller.RequestRestart(result.Command)
		metrics.StreamRestarted()
		resp.Body.Restarted = true
		resp.Body.Via = "supervisor"
		resp.Body.Command = result.Command

	case s.options.Systemd != nil:
		if err := s.options.Systemd.RestartUnit(ctx, systemd.StreamUnit); err != nil {
			return nil, huma.Error500InternalServerError("failed to restart unit", err)
		}
		metrics.StreamRestarted()
		resp.Body.Restarted = true
		resp.Body.Via = "systemd"

	default:
		return nil, huma.Error503ServiceUnavailable("no restart mechanism available")
	}
	return resp, nil
}

// composeFromSettings loads the config file and composes the command,
// translating failures into API errors.
func (s *Server) composeFromSettings() (stream.Result, error) {
	if s.options.LoadSettings == nil {
		return stream.Result{}, huma.Error500InternalServerError("no stream configuration source")
	}
	settings, err := s.options.LoadSettings()
	if err != nil {
		return stream.Result{}, huma.Error500InternalServerError("failed to load stream config", err)
	}
	result, err := stream.Compose(settings.ToStreamConfig())
	if err != nil {
		return stream.Result{}, huma.Error422UnprocessableEntity("invalid stream configuration", err)
	}
	return result, nil
}

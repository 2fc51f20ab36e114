package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/streampi/streampi/internal/camera"
	"github.com/streampi/streampi/internal/events"
)

// CameraInfo describes one detected capture device.
type CameraInfo struct {
	Device      string            `json:"device" example:"/dev/video0" doc:"V4L2 device path"`
	Formats     map[string]string `json:"formats" doc:"Capture format to best resolution"`
	InputFormat string            `json:"input_format" example:"h264" doc:"Preferred capture format"`
	VideoSize   string            `json:"video_size" example:"1920x1080" doc:"Preferred frame size"`
}

// CamerasResponse lists detected capture devices.
type CamerasResponse struct {
	Body struct {
		Cameras []CameraInfo `json:"cameras" doc:"Detected capture devices"`
	}
}

func (s *Server) registerCameraRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-cameras",
		Method:      http.MethodGet,
		Path:        "/api/cameras",
		Summary:     "List cameras",
		Description: "Probe /dev/video* nodes and report capture formats",
		Tags:        []string{"cameras"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(ctx context.Context, input *struct{}) (*CamerasResponse, error) {
		probes, err := camera.FindAll(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("camera probe failed", err)
		}

		resp := &CamerasResponse{}
		resp.Body.Cameras = make([]CameraInfo, 0, len(probes))
		for _, probe := range probes {
			sel := camera.SelectFormat(probe)
			resp.Body.Cameras = append(resp.Body.Cameras, CameraInfo{
				Device:      probe.Device,
				Formats:     probe.Formats,
				InputFormat: sel.InputFormat,
				VideoSize:   sel.VideoSize,
			})

			if s.options.Bus != nil {
				s.options.Bus.Publish(events.CameraDiscoveredEvent{
					Device:      probe.Device,
					InputFormat: sel.InputFormat,
					VideoSize:   sel.VideoSize,
					Timestamp:   time.Now().Format(time.RFC3339),
				})
			}
		}
		return resp, nil
	})
}

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/streampi/streampi/internal/events"
)

// registerEventRoutes registers the native Huma SSE endpoint.
func (s *Server) registerEventRoutes() {
	if s.options.Bus == nil {
		return
	}
	bus := s.options.Bus

	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream state, camera discovery, and config reload events",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"stream-state-changed": events.StreamStateChangedEvent{},
		"camera-discovered":    events.CameraDiscoveredEvent{},
		"config-reloaded":      events.ConfigReloadedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 10)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.StreamStateChangedEvent](bus, eventCh),
			events.SubscribeToChannel[events.CameraDiscoveredEvent](bus, eventCh),
			events.SubscribeToChannel[events.ConfigReloadedEvent](bus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Initial snapshot so a client sees the current state immediately.
		if s.options.Controller != nil {
			info := s.options.Controller.Info()
			errMsg := ""
			if info.LastError != nil {
				errMsg = info.LastError.Error()
			}
			if err := send.Data(events.StreamStateChangedEvent{
				State:        string(info.State),
				PID:          info.PID,
				RestartCount: info.RestartCount,
				Error:        errMsg,
				Timestamp:    time.Now().Format(time.RFC3339),
			}); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/streampi/streampi/internal/version"
)

// HealthResponse is the health check response.
type HealthResponse struct {
	Body struct {
		Status string `json:"status" example:"ok" doc:"Service status"`
	}
}

// VersionResponse carries build metadata.
type VersionResponse struct {
	Body version.Info
}

func (s *Server) registerSystemRoutes() {
	// Health and version are unauthenticated so probes and scripts work
	// without credentials.
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*HealthResponse, error) {
		resp := &HealthResponse{}
		resp.Body.Status = "ok"
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*VersionResponse, error) {
		return &VersionResponse{Body: version.Get()}, nil
	})
}

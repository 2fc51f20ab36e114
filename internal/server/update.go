package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/streampi/streampi/internal/updater"
)

// UpdateResponse reports the result of an update check or apply.
type UpdateResponse struct {
	Body updater.UpdateInfo
}

func (s *Server) registerUpdateRoutes() {
	if s.options.Updater == nil {
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "check-update",
		Method:      http.MethodGet,
		Path:        "/api/update",
		Summary:     "Check for updates",
		Tags:        []string{"system"},
		Security:    withAuth(),
		Errors:      []int{401, 502},
	}, func(ctx context.Context, _ *struct{}) (*UpdateResponse, error) {
		info, err := s.options.Updater.Check(ctx)
		if err != nil {
			return nil, huma.Error502BadGateway("update check failed", err)
		}
		return &UpdateResponse{Body: *info}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "apply-update",
		Method:      http.MethodPost,
		Path:        "/api/update",
		Summary:     "Apply the latest update",
		Description: "Download the latest release and replace the binary; restart to pick it up",
		Tags:        []string{"system"},
		Security:    withAuth(),
		Errors:      []int{401, 502},
	}, func(ctx context.Context, _ *struct{}) (*UpdateResponse, error) {
		info, err := s.options.Updater.Apply(ctx)
		if err != nil {
			return nil, huma.Error502BadGateway("update failed", err)
		}
		return &UpdateResponse{Body: *info}, nil
	})
}

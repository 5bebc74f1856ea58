package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/fbmirror/internal/api/models"
)

func ok(message string) *models.ActionResponse {
	return &models.ActionResponse{
		Body: models.ActionData{Status: "ok", Message: message},
	}
}

func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/api/session",
		Summary:     "Session status",
		Description: "Connectivity state, geometry, screen state, capture delay and power key candidates",
		Tags:        []string{"session"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.SessionStatusResponse, error) {
		return &models.SessionStatusResponse{Body: s.session.Status()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "wake-device",
		Method:      http.MethodPost,
		Path:        "/api/session/wake",
		Summary:     "Wake screen",
		Description: "Send the power key through each discovered candidate until the backlight lights",
		Tags:        []string{"session"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 422, 502},
	}, func(ctx context.Context, _ *struct{}) (*models.ActionResponse, error) {
		if err := s.session.Wake(ctx); err != nil {
			return nil, sessionErrorToHuma(err)
		}
		return ok("screen on"), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "pause-capture",
		Method:      http.MethodPost,
		Path:        "/api/session/pause",
		Summary:     "Pause capture",
		Description: "Stop capturing frames without dropping the connection",
		Tags:        []string{"session"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.ActionResponse, error) {
		s.session.Pause()
		return ok("capture paused"), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "resume-capture",
		Method:      http.MethodPost,
		Path:        "/api/session/resume",
		Summary:     "Resume capture",
		Description: "Resume capturing frames after a pause",
		Tags:        []string{"session"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.ActionResponse, error) {
		s.session.Resume()
		return ok("capture resumed"), nil
	})
}

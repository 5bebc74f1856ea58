package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/fbmirror/internal/api/models"
	"github.com/smazurov/fbmirror/internal/device"
)

var gestureErrors = []int{401, 409, 502}

// registerPointRoute registers a POST endpoint taking a single screen point.
func (s *Server) registerPointRoute(id, path, summary, desc string, action func(context.Context, device.Point) error) {
	huma.Register(s.api, huma.Operation{
		OperationID: id,
		Method:      http.MethodPost,
		Path:        path,
		Summary:     summary,
		Description: desc,
		Tags:        []string{"input"},
		Security:    withAuth(),
		Errors:      gestureErrors,
	}, func(ctx context.Context, input *models.PointRequest) (*models.ActionResponse, error) {
		if err := action(ctx, input.Body); err != nil {
			return nil, sessionErrorToHuma(err)
		}
		return ok(id), nil
	})
}

func (s *Server) registerInputRoutes() {
	s.registerPointRoute("tap", "/api/session/tap", "Tap",
		"Press and release at one point", s.session.Tap)
	s.registerPointRoute("press", "/api/session/press", "Press",
		"Begin a press at a point", s.session.Press)
	s.registerPointRoute("move", "/api/session/move", "Move",
		"Move a held press; only the legacy input variant emits events", s.session.Move)
	s.registerPointRoute("release", "/api/session/release", "Release",
		"End a press, producing a tap or a swipe", s.session.Release)

	huma.Register(s.api, huma.Operation{
		OperationID: "swipe",
		Method:      http.MethodPost,
		Path:        "/api/session/swipe",
		Summary:     "Swipe",
		Description: "Drag from one point to another",
		Tags:        []string{"input"},
		Security:    withAuth(),
		Errors:      gestureErrors,
	}, func(ctx context.Context, input *models.SwipeRequest) (*models.ActionResponse, error) {
		if err := s.session.Swipe(ctx, input.Body.From, input.Body.To); err != nil {
			return nil, sessionErrorToHuma(err)
		}
		return ok("swipe"), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "send-key",
		Method:      http.MethodPost,
		Path:        "/api/session/key",
		Summary:     "Send key",
		Description: "Inject an Android key code",
		Tags:        []string{"input"},
		Security:    withAuth(),
		Errors:      gestureErrors,
	}, func(ctx context.Context, input *models.KeyRequest) (*models.ActionResponse, error) {
		if err := s.session.SendKey(ctx, input.Body.Code); err != nil {
			return nil, sessionErrorToHuma(err)
		}
		return ok("key"), nil
	})
}

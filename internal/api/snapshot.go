package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/fbmirror/internal/api/models"
	"github.com/smazurov/fbmirror/internal/snapshot"
)

func (s *Server) registerSnapshotRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-snapshot",
		Method:      http.MethodGet,
		Path:        "/api/session/snapshot",
		Summary:     "Snapshot",
		Description: "Latest decoded frame as PNG or JPEG",
		Tags:        []string{"session"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 500},
	}, func(_ context.Context, input *models.SnapshotRequest) (*models.SnapshotResponse, error) {
		format, err := snapshot.ParseFormat(input.Format)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}

		frame := s.session.LatestFrame()
		if frame == nil {
			return nil, huma.Error404NotFound("no frame captured yet")
		}

		data, err := snapshot.EncodeBytes(frame, snapshot.Options{
			Format:   format,
			MaxWidth: input.Width,
			Quality:  input.Quality,
		})
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to encode snapshot", err)
		}

		return &models.SnapshotResponse{
			ContentType:  format.ContentType(),
			CacheControl: "no-store",
			Body:         data,
		}, nil
	})
}

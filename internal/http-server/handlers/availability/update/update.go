package update

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"garage-service/api"
	"garage-service/internal/models"
	"garage-service/pkg/middleware/mwauth"
	"garage-service/pkg/response"
	"garage-service/pkg/sl"
)

type AvailabilityReplacer interface {
	ReplaceAvailability(ctx context.Context, mechanicID string, req *api.AvailabilityUpdateRequest, actor models.Actor) (*api.AvailabilityResponse, error)
}

type Request struct {
	api.AvailabilityUpdateRequest
}

type Response struct {
	response.Response
	api.AvailabilityResponse
}

func New(log *slog.Logger, replacer AvailabilityReplacer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.availability.update.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		actor, ok := mwauth.ActorFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			render.JSON(w, r, response.Error(string(response.UNAUTHORIZED), "missing credentials"))
			return
		}

		mechanicID := chi.URLParam(r, "id")
		if mechanicID == "" {
			log.Error("mechanic id is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "mechanic id is required"))
			return
		}

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		log.Info("Replacing availability",
			slog.String("mechanic_id", mechanicID),
			slog.Int("slots", len(req.Availability)),
		)

		availability, err := replacer.ReplaceAvailability(r.Context(), mechanicID, &req.AvailabilityUpdateRequest, actor)

		if errors.Is(err, response.ErrBadRequest) {
			log.Error("invalid availability slot", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), err.Error()))
			return
		}

		if errors.Is(err, response.ErrForbidden) {
			log.Error("operation not permitted")
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error(string(response.FORBIDDEN), "operation not permitted"))
			return
		}

		if errors.Is(err, response.ErrNotFound) {
			log.Error("mechanic not found", slog.String("mechanic_id", mechanicID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "mechanic not found"))
			return
		}

		if err != nil {
			log.Error("Failed to replace availability", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to replace availability"))
			return
		}

		log.Info("Availability replaced", slog.String("mechanic_id", mechanicID))

		render.JSON(w, r, Response{
			AvailabilityResponse: *availability,
		})
	}
}

package get

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"garage-service/api"
	"garage-service/pkg/response"
	"garage-service/pkg/sl"
)

type AvailabilityProvider interface {
	GetAvailability(ctx context.Context, mechanicID string) (*api.AvailabilityResponse, error)
}

type Response struct {
	response.Response
	api.AvailabilityResponse
}

func New(log *slog.Logger, provider AvailabilityProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.availability.get.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		mechanicID := chi.URLParam(r, "id")
		if mechanicID == "" {
			log.Error("mechanic id is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "mechanic id is required"))
			return
		}

		availability, err := provider.GetAvailability(r.Context(), mechanicID)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("mechanic not found", slog.String("mechanic_id", mechanicID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "mechanic not found"))
			return
		}

		if err != nil {
			log.Error("Failed to get availability", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to get availability"))
			return
		}

		render.JSON(w, r, Response{
			AvailabilityResponse: *availability,
		})
	}
}

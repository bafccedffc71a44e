package get

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"garage-service/api"
	"garage-service/pkg/response"
	"garage-service/pkg/sl"
)

type SlotsProvider interface {
	CheckAvailability(ctx context.Context, date time.Time, serviceID string, mechanicID *string) ([]api.AvailableSlot, error)
}

type Response struct {
	response.Response
	Date  string              `json:"date,omitempty"`
	Slots []api.AvailableSlot `json:"slots"`
}

func New(log *slog.Logger, provider SlotsProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.slots.get.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		dateStr := r.URL.Query().Get("date")
		serviceID := r.URL.Query().Get("service_id")

		if dateStr == "" || serviceID == "" {
			log.Error("date or service_id is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "date and service_id are required"))
			return
		}

		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			log.Error("invalid date", slog.String("date", dateStr))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "date must be YYYY-MM-DD"))
			return
		}

		var mechanicID *string
		if id := r.URL.Query().Get("mechanic_id"); id != "" {
			mechanicID = &id
		}

		slots, err := provider.CheckAvailability(r.Context(), date, serviceID, mechanicID)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("resource not found", sl.Err(err))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "resource not found"))
			return
		}

		if errors.Is(err, response.ErrMechanicUnavailable) {
			log.Error("mechanic unavailable", sl.Err(err))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.MECHANIC_UNAVAILABLE), "mechanic is not available"))
			return
		}

		if err != nil {
			log.Error("Failed to check availability", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to check availability"))
			return
		}

		render.JSON(w, r, Response{
			Date:  dateStr,
			Slots: slots,
		})
	}
}

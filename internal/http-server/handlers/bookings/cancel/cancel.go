// Package cancel handles the customer-facing cancellation endpoint. It is a
// status update with a fixed target, kept separate so customers never send
// arbitrary statuses.
package cancel

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

type BookingCanceller interface {
	SetBookingStatus(ctx context.Context, bookingID, status string, actor models.Actor) (*api.BookingResponse, error)
}

type Response struct {
	response.Response
	Booking api.BookingResponse `json:"booking,omitempty"`
}

func New(log *slog.Logger, canceller BookingCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.cancel.New"

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

		bookingID := chi.URLParam(r, "id")
		if bookingID == "" {
			log.Error("booking id is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "booking id is required"))
			return
		}

		log.Info("Cancelling booking", slog.String("booking_id", bookingID))

		booking, err := canceller.SetBookingStatus(r.Context(), bookingID, string(models.StatusCancelled), actor)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("booking not found", sl.Err(err))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "booking not found"))
			return
		}

		if errors.Is(err, response.ErrForbidden) {
			log.Error("operation not permitted", sl.Err(err))
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error(string(response.FORBIDDEN), "operation not permitted"))
			return
		}

		if errors.Is(err, response.ErrInvalidTransition) {
			log.Error("booking can no longer be cancelled", sl.Err(err))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.INVALID_TRANSITION), "booking can no longer be cancelled"))
			return
		}

		if errors.Is(err, response.ErrConcurrentConflict) {
			log.Error("booking changed concurrently", sl.Err(err))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.CONCURRENT_CONFLICT), "booking changed concurrently, retry"))
			return
		}

		if errors.Is(err, response.ErrLocked) {
			log.Error("mechanic schedule is locked")
			w.WriteHeader(http.StatusLocked)
			render.JSON(w, r, response.Error(string(response.LOCKED), "mechanic schedule is locked, retry later"))
			return
		}

		if err != nil {
			log.Error("Failed to cancel booking", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to cancel booking"))
			return
		}

		log.Info("Booking cancelled", slog.String("booking_id", booking.ID))

		render.JSON(w, r, Response{
			Booking: *booking,
		})
	}
}

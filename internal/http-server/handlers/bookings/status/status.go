package status

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

type StatusSetter interface {
	SetBookingStatus(ctx context.Context, bookingID, status string, actor models.Actor) (*api.BookingResponse, error)
}

type Request struct {
	api.StatusUpdateRequest
}

type Response struct {
	response.Response
	Booking api.BookingResponse `json:"booking,omitempty"`
}

func New(log *slog.Logger, setter StatusSetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.status.New"

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

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		if req.Status == "" {
			log.Error("status is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "status is required"))
			return
		}

		log.Info("Updating booking status",
			slog.String("booking_id", bookingID),
			slog.String("status", req.Status),
		)

		booking, err := setter.SetBookingStatus(r.Context(), bookingID, req.Status, actor)

		if respondStatusError(w, r, log, err) {
			return
		}

		log.Info("Booking status updated",
			slog.String("booking_id", booking.ID),
			slog.String("status", booking.Status),
		)

		render.JSON(w, r, Response{
			Booking: *booking,
		})
	}
}

// respondStatusError writes the error response for a failed status update
// and reports whether it did.
func respondStatusError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) bool {
	switch {
	case err == nil:
		return false

	case errors.Is(err, response.ErrNotFound):
		log.Error("booking not found", sl.Err(err))
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error(string(response.NOT_FOUND), "booking not found"))

	case errors.Is(err, response.ErrForbidden):
		log.Error("operation not permitted", sl.Err(err))
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Error(string(response.FORBIDDEN), "operation not permitted"))

	case errors.Is(err, response.ErrInvalidTransition):
		log.Error("invalid status transition", sl.Err(err))
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error(string(response.INVALID_TRANSITION), "status transition not allowed"))

	case errors.Is(err, response.ErrLocked):
		log.Error("mechanic schedule is locked")
		w.WriteHeader(http.StatusLocked)
		render.JSON(w, r, response.Error(string(response.LOCKED), "mechanic schedule is locked, retry later"))

	case errors.Is(err, response.ErrConcurrentConflict):
		log.Error("concurrent modification", sl.Err(err))
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error(string(response.CONCURRENT_CONFLICT), "concurrent modification detected, retry"))

	default:
		log.Error("Failed to update booking status", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to update booking status"))
	}

	return true
}

package assign

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

type MechanicAssigner interface {
	AssignMechanic(ctx context.Context, bookingID, mechanicID string, actor models.Actor) (*api.BookingResponse, error)
}

type Request struct {
	api.AssignMechanicRequest
}

type Response struct {
	response.Response
	Booking api.BookingResponse `json:"booking,omitempty"`
}

func New(log *slog.Logger, assigner MechanicAssigner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.assign.New"

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

		if req.MechanicID == "" {
			log.Error("mechanic_id is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "mechanic_id is required"))
			return
		}

		log.Info("Assigning mechanic",
			slog.String("booking_id", bookingID),
			slog.String("mechanic_id", req.MechanicID),
		)

		booking, err := assigner.AssignMechanic(r.Context(), bookingID, req.MechanicID, actor)

		if errors.Is(err, response.ErrForbidden) {
			log.Error("operation not permitted")
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error(string(response.FORBIDDEN), "operation not permitted"))
			return
		}

		if errors.Is(err, response.ErrNotFound) {
			log.Error("resource not found", sl.Err(err))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "resource not found"))
			return
		}

		if errors.Is(err, response.ErrInvalidTransition) {
			log.Error("booking is in a terminal status", sl.Err(err))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.INVALID_TRANSITION), "booking can no longer be assigned"))
			return
		}

		if errors.Is(err, response.ErrMechanicUnavailable) {
			log.Error("mechanic is not available", sl.Err(err))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.MECHANIC_UNAVAILABLE), "mechanic is not available during this time slot"))
			return
		}

		if errors.Is(err, response.ErrLocked) {
			log.Error("mechanic schedule is locked")
			w.WriteHeader(http.StatusLocked)
			render.JSON(w, r, response.Error(string(response.LOCKED), "mechanic schedule is locked, retry later"))
			return
		}

		if errors.Is(err, response.ErrConcurrentConflict) {
			log.Error("concurrent modification", sl.Err(err))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.CONCURRENT_CONFLICT), "concurrent modification detected, retry"))
			return
		}

		if err != nil {
			log.Error("Failed to assign mechanic", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to assign mechanic"))
			return
		}

		log.Info("Mechanic assigned", slog.String("booking_id", booking.ID))

		render.JSON(w, r, Response{
			Booking: *booking,
		})
	}
}

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

type TaskStatusSetter interface {
	// SetTaskStatus accepts a task ID or a booking ID as ref.
	SetTaskStatus(ctx context.Context, ref, status string, actor models.Actor) (*api.TaskResponse, error)
}

type Request struct {
	api.StatusUpdateRequest
}

type Response struct {
	response.Response
	Task api.TaskResponse `json:"task,omitempty"`
}

func New(log *slog.Logger, setter TaskStatusSetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.tasks.status.New"

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

		ref := chi.URLParam(r, "id")
		if ref == "" {
			log.Error("task id is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "task id is required"))
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

		log.Info("Updating task status",
			slog.String("ref", ref),
			slog.String("status", req.Status),
		)

		task, err := setter.SetTaskStatus(r.Context(), ref, req.Status, actor)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("task not found", sl.Err(err))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "task not found"))
			return
		}

		if errors.Is(err, response.ErrForbidden) {
			log.Error("operation not permitted", sl.Err(err))
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error(string(response.FORBIDDEN), "operation not permitted"))
			return
		}

		if errors.Is(err, response.ErrInvalidTransition) {
			log.Error("invalid status transition", sl.Err(err))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.INVALID_TRANSITION), "status transition not allowed"))
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
			log.Error("Failed to update task status", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to update task status"))
			return
		}

		log.Info("Task status updated",
			slog.String("task_id", task.ID),
			slog.String("status", task.Status),
		)

		render.JSON(w, r, Response{
			Task: *task,
		})
	}
}

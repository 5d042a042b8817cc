package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/me/remotetask/pkg/model"
)

// maxBlobSize bounds the parameter blob accepted by POST /tasks.
const maxBlobSize = 8 << 20

type taskListResponse struct {
	Summary  model.AttemptSummary `json:"summary"`
	Attempts []model.Attempt      `json:"attempts"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	attempts := s.runner.List()
	if state := r.URL.Query().Get("state"); state != "" {
		filtered := attempts[:0]
		for _, a := range attempts {
			if string(a.State) == state {
				filtered = append(filtered, a)
			}
		}
		attempts = filtered
	}

	respondOK(w, reqID, taskListResponse{
		Summary:  model.ComputeAttemptSummary(attempts),
		Attempts: attempts,
	})
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	blob, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBlobSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, reqID, http.StatusRequestEntityTooLarge,
				model.NewValidationError(fmt.Sprintf("parameter blob exceeds %d bytes", tooLarge.Limit)))
			return
		}
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("read body: "+err.Error()))
		return
	}

	attempt, err := s.runner.Start(blob)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondCreated(w, reqID, attempt)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	attempt := s.runner.Get(id)
	if attempt == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("task", id))
		return
	}
	respondOK(w, reqID, attempt)
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	attempt := s.runner.Get(id)
	if attempt == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("task", id))
		return
	}
	if attempt.State.IsTerminal() {
		respondError(w, reqID, http.StatusConflict, &model.APIError{
			Code:    model.ErrConflict,
			Message: "task '" + id + "' already finished with outcome " + string(attempt.Outcome),
		})
		return
	}

	s.runner.Cancel(id)
	respondAccepted(w, reqID, map[string]any{
		"id":     id,
		"status": "cancel_requested",
	})
}

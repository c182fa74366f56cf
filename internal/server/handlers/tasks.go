package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/anxbt/InfraProof/internal/server/middleware"
	"github.com/anxbt/InfraProof/pkg/ledger"
)

// TaskHandler serves the read-only task views over the registry.
type TaskHandler struct {
	client ledger.Client
}

// NewTaskHandler creates a handler backed by the given registry client.
func NewTaskHandler(client ledger.Client) *TaskHandler {
	return &TaskHandler{client: client}
}

// TaskView is the task detail response: the immutable task record, its
// derived status, and the receipt once one is recorded. A pending task
// has no receipt; that is the normal mid-lifecycle state, not an error.
type TaskView struct {
	Task    ledger.Task       `json:"task"`
	Status  ledger.TaskStatus `json:"status"`
	Receipt *ledger.Receipt   `json:"receipt,omitempty"`
}

// Show handles GET /v1/tasks/{taskID}.
func (h *TaskHandler) Show(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "taskID")
	taskID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, middleware.CodeBadRequest,
			fmt.Sprintf("invalid task id %q", raw))
		return
	}

	task, err := h.client.GetTask(r.Context(), taskID)
	if err != nil {
		if ledger.IsNotFound(err) {
			middleware.WriteError(w, r, http.StatusNotFound, middleware.CodeNotFound,
				fmt.Sprintf("task %d not found", taskID))
			return
		}
		middleware.WriteError(w, r, http.StatusInternalServerError, middleware.CodeInternalError,
			"failed to read task")
		return
	}

	status, err := h.client.TaskStatus(r.Context(), taskID)
	if err != nil {
		middleware.WriteError(w, r, http.StatusInternalServerError, middleware.CodeInternalError,
			"failed to derive task status")
		return
	}

	view := TaskView{Task: task, Status: status}
	receipt, ok, err := h.client.GetReceipt(r.Context(), taskID)
	if err != nil {
		middleware.WriteError(w, r, http.StatusInternalServerError, middleware.CodeInternalError,
			"failed to read receipt")
		return
	}
	if ok {
		view.Receipt = &receipt
	}

	writeJSON(w, http.StatusOK, view)
}

package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/anxbt/InfraProof/internal/server/middleware"
	"github.com/anxbt/InfraProof/pkg/ledger"
)

// defaultEventLimit caps a listing request that names no limit.
const defaultEventLimit = 100

// EventsHandler serves the registry event log.
type EventsHandler struct {
	client ledger.Client
}

// NewEventsHandler creates a handler backed by the given registry
// client.
func NewEventsHandler(client ledger.Client) *EventsHandler {
	return &EventsHandler{client: client}
}

// EventsView is the event listing response.
type EventsView struct {
	Events []ledger.Event `json:"events"`
	Count  int            `json:"count"`
}

// List handles GET /v1/events?since=N&limit=M. Events are returned in
// sequence order, starting after seq N.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var since uint64
	if raw := q.Get("since"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			middleware.WriteError(w, r, http.StatusBadRequest, middleware.CodeBadRequest,
				fmt.Sprintf("invalid since value %q", raw))
			return
		}
		since = v
	}

	limit := defaultEventLimit
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			middleware.WriteError(w, r, http.StatusBadRequest, middleware.CodeBadRequest,
				fmt.Sprintf("invalid limit value %q", raw))
			return
		}
		limit = v
	}

	events, err := h.client.Events(r.Context(), since, limit)
	if err != nil {
		middleware.WriteError(w, r, http.StatusInternalServerError, middleware.CodeInternalError,
			"failed to read events")
		return
	}
	if events == nil {
		events = []ledger.Event{}
	}

	writeJSON(w, http.StatusOK, EventsView{Events: events, Count: len(events)})
}

package webhook

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"

	"github.com/lazyrhythm/hookfy/internal/httputil"
)

// Handlers provides the HTTP surface of the pipeline: an ingest adapter for
// event sources that speak HTTP, and a read-only delivery history.
type Handlers struct {
	store  *EventStore
	broker MessageBroker
}

// NewHandlers creates a new Handlers.
func NewHandlers(store *EventStore, broker MessageBroker) *Handlers {
	return &Handlers{store: store, broker: broker}
}

// RegisterRoutes wires the pipeline endpoints onto the provided router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/events", h.IngestEvent).Methods("POST")
	r.HandleFunc("/api/events", h.ListEvents).Methods("GET")
	r.HandleFunc("/api/events/{id}", h.GetEvent).Methods("GET")
}

// IngestEvent handles POST /api/events. The event is published to the
// broker and processed asynchronously; the response only acknowledges
// acceptance.
func (h *Handlers) IngestEvent(w http.ResponseWriter, r *http.Request) {
	var ev Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid event payload")
		return
	}
	if ev.SourceID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "sourceId is required")
		return
	}

	env := NewEnvelope(TopicEventCaptured, ev)
	if err := h.broker.Publish(TopicEventCaptured, env); err != nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "event transport unavailable")
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"envelopeId": env.ID})
}

// ListEvents handles GET /api/events with optional source, status, limit
// and offset query parameters.
func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	params := EventListParams{
		SourceID: q.Get("source"),
		Status:   q.Get("status"),
		Limit:    limit,
		Offset:   offset,
	}

	events, total, err := h.store.List(r.Context(), params)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  total,
		"limit":  params.Limit,
		"offset": params.Offset,
	})
}

// GetEvent handles GET /api/events/{id}.
func (h *Handlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	event, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httputil.WriteError(w, http.StatusNotFound, "event not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	httputil.WriteJSON(w, http.StatusOK, event)
}

package webhook

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Delivery status labels persisted against an event.
const (
	StatusPending  = "pending"
	StatusSuccess  = "success"
	StatusFailed   = "failed"
	StatusFiltered = "filtered"
	// StatusStale marks rows left pending by a previous run. It is distinct
	// from failed because pending also covers deliberate no-ops (forwarding
	// disabled, no endpoints configured), not only lost dispatches.
	StatusStale = "stale"
)

// StoredEvent is a captured event row with its delivery status.
type StoredEvent struct {
	ID             string    `json:"id"`
	SourceID       string    `json:"source_id"`
	SourceName     string    `json:"source_name"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	SubText        string    `json:"sub_text"`
	ExpandedBody   string    `json:"expanded_body"`
	Timestamp      int64     `json:"timestamp"`
	DeliveryStatus string    `json:"delivery_status"`
	CreatedAt      time.Time `json:"created_at"`
}

// Event converts the row back into the pipeline's event shape.
func (e *StoredEvent) Event() Event {
	return Event{
		SourceID:     e.SourceID,
		SourceName:   e.SourceName,
		Title:        e.Title,
		Body:         e.Body,
		SubText:      e.SubText,
		ExpandedBody: e.ExpandedBody,
		Timestamp:    e.Timestamp,
	}
}

// EventListParams holds filters and pagination for listing events.
type EventListParams struct {
	SourceID string
	Status   string
	Limit    int
	Offset   int
}

// EventStore provides persistence for captured events and their delivery
// status.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Insert stores a captured event with status pending and returns the
// assigned event ID.
func (s *EventStore) Insert(ctx context.Context, ev Event) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO events (source_id, source_name, title, body, sub_text, expanded_body, event_ts, delivery_status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		ev.SourceID, ev.SourceName, ev.Title, ev.Body, ev.SubText, ev.ExpandedBody, ev.Timestamp, StatusPending,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpdateDeliveryStatus overwrites the delivery status of the given event.
// Recording twice leaves only the latest label.
func (s *EventStore) UpdateDeliveryStatus(ctx context.Context, id, status string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE events SET delivery_status = $1 WHERE id = $2`, status, id)
	return err
}

// Get returns a single event by ID.
func (s *EventStore) Get(ctx context.Context, id string) (*StoredEvent, error) {
	var e StoredEvent
	err := s.pool.QueryRow(ctx,
		`SELECT id, source_id, source_name, title, body, sub_text, expanded_body, event_ts, delivery_status, created_at
		 FROM events WHERE id = $1`, id,
	).Scan(&e.ID, &e.SourceID, &e.SourceName, &e.Title, &e.Body, &e.SubText, &e.ExpandedBody, &e.Timestamp, &e.DeliveryStatus, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns events matching the given filters with pagination, newest
// first, plus the total count.
func (s *EventStore) List(ctx context.Context, params EventListParams) ([]StoredEvent, int, error) {
	if params.Limit <= 0 || params.Limit > 100 {
		params.Limit = 50
	}

	query := `SELECT id, source_id, source_name, title, body, sub_text, expanded_body, event_ts, delivery_status, created_at
	          FROM events WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM events WHERE 1=1`
	var args []interface{}
	argIdx := 1

	if params.SourceID != "" {
		query += ` AND source_id = $` + strconv.Itoa(argIdx)
		countQuery += ` AND source_id = $` + strconv.Itoa(argIdx)
		args = append(args, params.SourceID)
		argIdx++
	}
	if params.Status != "" {
		query += ` AND delivery_status = $` + strconv.Itoa(argIdx)
		countQuery += ` AND delivery_status = $` + strconv.Itoa(argIdx)
		args = append(args, params.Status)
		argIdx++
	}

	var total int
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(argIdx)
	args = append(args, params.Limit)
	argIdx++
	query += ` OFFSET $` + strconv.Itoa(argIdx)
	args = append(args, params.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []StoredEvent
	for rows.Next() {
		var e StoredEvent
		if err := rows.Scan(&e.ID, &e.SourceID, &e.SourceName, &e.Title, &e.Body, &e.SubText, &e.ExpandedBody, &e.Timestamp, &e.DeliveryStatus, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		events = append(events, e)
	}

	if events == nil {
		events = []StoredEvent{}
	}

	return events, total, rows.Err()
}

// ReconcileStale relabels events left pending by a previous run as stale.
// Called once at startup so that a crash during dispatch is visible in the
// delivery history instead of lingering as pending forever. Pending rows
// from deliberate no-ops are relabeled too; stale means "this run no longer
// knows", not "delivery failed".
func (s *EventStore) ReconcileStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	tag, err := s.pool.Exec(ctx,
		`UPDATE events SET delivery_status = $1
		 WHERE delivery_status = $2 AND created_at < $3`,
		StatusStale, StatusPending, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// StatusStore is the slice of event persistence the recorder needs.
type StatusStore interface {
	UpdateDeliveryStatus(ctx context.Context, id, status string) error
}

// StatusRecorder persists delivery status labels without ever letting a
// storage error escape into the dispatch path.
type StatusRecorder struct {
	store StatusStore
}

// NewStatusRecorder creates a StatusRecorder backed by the given store.
func NewStatusRecorder(store StatusStore) *StatusRecorder {
	return &StatusRecorder{store: store}
}

// Record writes the status label for the event. Errors are logged and
// swallowed; a storage hiccup must never crash a dispatch.
func (r *StatusRecorder) Record(ctx context.Context, eventID, status string) {
	if err := r.store.UpdateDeliveryStatus(ctx, eventID, status); err != nil {
		log.Printf("webhook: failed to record status %s for event %s: %v", status, eventID, err)
	}
}

package webhook

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/lazyrhythm/hookfy/internal/metrics"
	"github.com/lazyrhythm/hookfy/internal/webhook/delivery"
	"github.com/lazyrhythm/hookfy/internal/ws"
)

// ConfigSource supplies the rule set and endpoint configuration for a
// dispatch. It is reloaded on every event so configuration edits take
// effect on the next dispatch.
type ConfigSource interface {
	Enabled(ctx context.Context) bool
	LoadRules(ctx context.Context, sourceID string) []Rule
	LoadEndpoints(ctx context.Context, sourceID string) EndpointSet
}

// Sender performs one delivery attempt against one endpoint.
type Sender interface {
	Post(url string, payload []byte, headers map[string]string) delivery.Outcome
}

// StatusWriter persists a delivery status label for an event.
type StatusWriter interface {
	Record(ctx context.Context, eventID, status string)
}

// FailureNotifier is told about events whose delivery failed on every
// endpoint. Best effort, fire and forget.
type FailureNotifier interface {
	NotifyFailure(eventID, sourceName, title string)
}

type dispatchJob struct {
	eventID string
	event   Event
}

// Dispatcher runs the per-event pipeline: load configuration, match, build
// the payload, fan out to every endpoint, record the aggregate status and
// raise the failure notification. Events are processed on a bounded worker
// pool so a slow endpoint can never stall event ingestion.
type Dispatcher struct {
	rules    ConfigSource
	recorder StatusWriter
	sender   Sender
	notifier FailureNotifier

	hub     *ws.Hub
	metrics *metrics.Metrics

	jobs    chan dispatchJob
	workers int
	wg      sync.WaitGroup
	once    sync.Once

	mu     sync.Mutex
	closed bool
}

// NewDispatcher creates a Dispatcher with the given collaborators, worker
// count and queue size. Call Start() before submitting events.
func NewDispatcher(rules ConfigSource, recorder StatusWriter, sender Sender, notifier FailureNotifier, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Dispatcher{
		rules:    rules,
		recorder: recorder,
		sender:   sender,
		notifier: notifier,
		jobs:     make(chan dispatchJob, queueSize),
		workers:  workers,
	}
}

// SetHub attaches a WebSocket hub that receives a delivery update whenever
// an event's status settles. Optional.
func (d *Dispatcher) SetHub(hub *ws.Hub) { d.hub = hub }

// SetMetrics attaches pipeline metrics. Optional.
func (d *Dispatcher) SetMetrics(m *metrics.Metrics) { d.metrics = m }

// Start launches the worker pool.
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for job := range d.jobs {
				d.Dispatch(context.Background(), job.eventID, job.event)
			}
		}()
	}
	log.Printf("webhook: dispatcher started with %d worker(s)", d.workers)
}

// Stop drains the queue and waits for in-flight dispatches to finish.
// Submissions arriving after Stop are marked failed instead of panicking
// on the closed queue.
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.jobs)
		d.mu.Unlock()
	})
	d.wg.Wait()
}

// Submit hands an event to the worker pool without blocking the caller.
// When the queue is full or the dispatcher has been stopped the event is
// marked failed instead of stalling ingestion.
func (d *Dispatcher) Submit(eventID string, event Event) {
	d.mu.Lock()
	if !d.closed {
		select {
		case d.jobs <- dispatchJob{eventID: eventID, event: event}:
			d.mu.Unlock()
			return
		default:
		}
	}
	closed := d.closed
	d.mu.Unlock()

	if closed {
		log.Printf("webhook: dispatcher stopped, dropping event %s", eventID)
	} else {
		log.Printf("webhook: dispatch queue full, dropping event %s", eventID)
	}
	d.recorder.Record(context.Background(), eventID, StatusFailed)
	d.notifier.NotifyFailure(eventID, event.SourceName, event.Title)
}

// Dispatch runs the pipeline for one event synchronously. It never lets a
// panic or error escape: any unexpected failure forces a failed status and
// a failure notification.
func (d *Dispatcher) Dispatch(ctx context.Context, eventID string, event Event) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("webhook: dispatch for event %s panicked: %v", eventID, r)
			d.recorder.Record(ctx, eventID, StatusFailed)
			d.notifier.NotifyFailure(eventID, event.SourceName, event.Title)
			d.observe(StatusFailed, start)
		}
	}()

	if !d.rules.Enabled(ctx) {
		return
	}

	rules := d.rules.LoadRules(ctx, event.SourceID)
	endpoints := d.rules.LoadEndpoints(ctx, event.SourceID)

	result := Evaluate(event, rules)
	if !result.Matched() {
		d.recorder.Record(ctx, eventID, StatusFiltered)
		d.broadcast(eventID, event, StatusFiltered, nil)
		d.observe(StatusFiltered, start)
		return
	}

	payload, err := json.Marshal(BuildPayload(event, result.Extracted(), time.Now()))
	if err != nil {
		// Event and extracted fields are plain strings; this should never
		// happen, but treat it like any other dispatch failure.
		log.Printf("webhook: failed to marshal payload for event %s: %v", eventID, err)
		d.recorder.Record(ctx, eventID, StatusFailed)
		d.notifier.NotifyFailure(eventID, event.SourceName, event.Title)
		d.observe(StatusFailed, start)
		return
	}

	if len(endpoints.URLs) == 0 {
		// Matched but nothing configured: a no-op, not a failure. The
		// event keeps its pending label and no alert is raised.
		log.Printf("webhook: no endpoints configured for event %s (source %s)", eventID, event.SourceID)
		return
	}

	outcomes := make([]delivery.Outcome, 0, len(endpoints.URLs))
	anySuccess := false
	for _, url := range endpoints.URLs {
		outcome := d.sender.Post(url, payload, endpoints.Headers)
		outcomes = append(outcomes, outcome)
		if outcome.Succeeded {
			anySuccess = true
		}
		d.countDelivery(outcome.Succeeded)
	}

	status := StatusFailed
	if anySuccess {
		status = StatusSuccess
	}
	d.recorder.Record(ctx, eventID, status)
	d.broadcast(eventID, event, status, outcomes)
	d.observe(status, start)

	if !anySuccess {
		d.notifier.NotifyFailure(eventID, event.SourceName, event.Title)
	}
}

func (d *Dispatcher) broadcast(eventID string, event Event, status string, outcomes []delivery.Outcome) {
	if d.hub == nil {
		return
	}
	d.hub.BroadcastDelivery(ws.DeliveryUpdate{
		EventID:    eventID,
		SourceID:   event.SourceID,
		SourceName: event.SourceName,
		Title:      event.Title,
		Status:     status,
		Outcomes:   outcomes,
	})
}

func (d *Dispatcher) observe(status string, start time.Time) {
	if d.metrics == nil {
		return
	}
	d.metrics.DispatchesTotal.WithLabelValues(status).Inc()
	d.metrics.DispatchDuration.Observe(time.Since(start).Seconds())
}

func (d *Dispatcher) countDelivery(succeeded bool) {
	if d.metrics == nil {
		return
	}
	outcome := "failure"
	if succeeded {
		outcome = "success"
	}
	d.metrics.DeliveriesTotal.WithLabelValues(outcome).Inc()
}

package webhook

import (
	"context"
	"log"

	"github.com/lazyrhythm/hookfy/internal/metrics"
)

// Ingestor persists a captured event and returns its assigned ID.
type Ingestor interface {
	Insert(ctx context.Context, ev Event) (string, error)
}

// Submitter accepts a persisted event for asynchronous dispatch.
type Submitter interface {
	Submit(eventID string, event Event)
}

// Consumer subscribes to the captured-event topic, persists each event and
// hands it to the dispatcher pool. It also tails the delivery.failed topic
// for operator-visible logging. Run it once at startup.
type Consumer struct {
	broker     MessageBroker
	store      Ingestor
	dispatcher Submitter
	metrics    *metrics.Metrics
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewConsumer creates a new Consumer.
func NewConsumer(broker MessageBroker, store Ingestor, dispatcher Submitter) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		broker:     broker,
		store:      store,
		dispatcher: dispatcher,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SetMetrics attaches pipeline metrics. Optional.
func (c *Consumer) SetMetrics(m *metrics.Metrics) { c.metrics = m }

// Start subscribes to the pipeline topics. This method returns immediately;
// event handling runs asynchronously via the broker's subscription
// mechanism.
func (c *Consumer) Start() error {
	if _, err := c.broker.Subscribe(TopicEventCaptured, c.handleCaptured); err != nil {
		return err
	}
	log.Printf("webhook: consumer subscribed to %s", TopicEventCaptured)

	if _, err := c.broker.Subscribe(TopicDeliveryFailed, c.handleFailed); err != nil {
		return err
	}
	log.Printf("webhook: consumer subscribed to %s", TopicDeliveryFailed)
	return nil
}

// Stop cancels the consumer's context. For KafkaBroker, call broker.Close()
// separately to stop the underlying consumers.
func (c *Consumer) Stop() {
	c.cancel()
}

// handleCaptured persists the event and submits it for dispatch. The
// persistence step assigns the event its identifier; the dispatcher only
// ever sees already-persisted events.
func (c *Consumer) handleCaptured(env Envelope) {
	if c.ctx.Err() != nil {
		return
	}

	if c.metrics != nil {
		c.metrics.EventsIngested.Inc()
	}

	id, err := c.store.Insert(c.ctx, env.Event)
	if err != nil {
		log.Printf("webhook: failed to persist event from source %s: %v", env.Event.SourceID, err)
		return
	}

	c.dispatcher.Submit(id, env.Event)
}

func (c *Consumer) handleFailed(env Envelope) {
	log.Printf("webhook: delivery failed for event %s: %s - %s",
		env.EventID, env.Event.SourceName, env.Event.Title)
}

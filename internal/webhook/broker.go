package webhook

// MessageBroker defines the interface for publishing and subscribing to
// event envelopes. Implementations include InMemoryBroker (for single-node)
// and KafkaBroker (for distributed setups).
type MessageBroker interface {
	// Publish sends an envelope to the given topic. Subscribers registered
	// for that topic will receive the envelope asynchronously.
	Publish(topic string, env Envelope) error

	// Subscribe registers a handler that will be called for every envelope
	// published to the given topic. Returns a subscription ID that can be
	// used for tracking purposes.
	Subscribe(topic string, handler EnvelopeHandler) (string, error)

	// Close shuts down the broker, releasing any resources (connections,
	// goroutines, channels). After Close returns, Publish and Subscribe
	// must not be called.
	Close() error
}

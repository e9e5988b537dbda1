package webhook

import "log"

// BrokerNotifier publishes a delivery.failed envelope for every failed
// event so that other components (the feed, operators tailing the topic)
// can react.
type BrokerNotifier struct {
	broker MessageBroker
}

// NewBrokerNotifier creates a BrokerNotifier on the given broker.
func NewBrokerNotifier(broker MessageBroker) *BrokerNotifier {
	return &BrokerNotifier{broker: broker}
}

// NotifyFailure publishes the failure envelope. Errors are logged and
// dropped; failure notification is best effort.
func (n *BrokerNotifier) NotifyFailure(eventID, sourceName, title string) {
	env := NewEnvelope(TopicDeliveryFailed, Event{SourceName: sourceName, Title: title})
	env.EventID = eventID
	if err := n.broker.Publish(TopicDeliveryFailed, env); err != nil {
		log.Printf("webhook: failed to publish delivery failure for event %s: %v", eventID, err)
	}
}

// LogNotifier is a FailureNotifier that only logs. Used when no broker is
// available and in tests.
type LogNotifier struct{}

// NotifyFailure logs the failed delivery.
func (LogNotifier) NotifyFailure(eventID, sourceName, title string) {
	log.Printf("webhook: delivery failed for event %s: %s - %s", eventID, sourceName, title)
}

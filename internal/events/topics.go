package events

// Topic constants for domain events emitted by the service.
const (
	TopicOrderCreated   = "order.created"
	TopicOrderSubmitted = "order.submitted"
	TopicBundleUpdated  = "bundle.updated"
)

// DefaultTopics returns the canonical list of topics published to subscribers.
func DefaultTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicOrderSubmitted,
		TopicBundleUpdated,
	}
}

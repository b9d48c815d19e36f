package events

// Event enumerates high-level topics inside the assistant.
type Event string

const (
	EventSignalGenerated Event = "signal.generated"
	EventOrderSubmitted  Event = "order.submitted"
	EventOrderAccepted   Event = "order.accepted"
	EventOrderRejected   Event = "order.rejected"
)

// Message is what subscribers receive: the topic plus its payload.
type Message struct {
	Event   Event `json:"event"`
	Payload any   `json:"payload"`
}

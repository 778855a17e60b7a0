package event

import "context"

// Message is the delivery envelope. ID is assigned at publish time and is
// unique per publish, not per delivery: redeliveries reuse it.
type Message struct {
	ID      string
	Topic   string
	Key     string
	Payload []byte
}

// Handler processes one delivered message. Returning an error means the
// message is not acknowledged and will be redelivered; returning nil acks it.
type Handler func(ctx context.Context, msg Message) error

// Bus is the at-least-once, ordered-per-key message channel the core depends
// on. Publish does not wait for consumer processing. Subscribe registers a
// handler for a topic under a consumer group; within a group each key's
// messages are handled in publish order.
type Bus interface {
	Publish(ctx context.Context, topic, key string, payload any) error
	Subscribe(topic, group string, h Handler) error
}

package pubsub

import (
	"cloud.google.com/go/pubsub"
	"context"
)

type SubscriptionHandler struct {
	SubscriptionId string
	Handler        func(ctx context.Context, message *pubsub.Message)
}

// Publishable is anything that knows which topic it belongs on.
type Publishable interface {
	GetEventTopicName() string
}

// Publisher is the outbound side of the client.
type Publisher interface {
	Publish(message Publishable)
}

// Subscriber is the inbound side of the client.
type Subscriber interface {
	Subscribe(subscriptionHandler SubscriptionHandler)
}

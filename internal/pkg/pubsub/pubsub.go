package pubsub

import (
	"cloud.google.com/go/pubsub"
	"context"
	"encoding/json"
	"fmt"
	"github.com/rs/zerolog/log"
	"sync"
)

type Client struct {
	ctx    context.Context
	client *pubsub.Client

	topicsMutex sync.Mutex
	topics      map[string]*pubsub.Topic
}

func NewClient(ctx context.Context, projectID string) (*Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("pub sub missing projectID to initialize")
	}
	log.Info().Msg(fmt.Sprintf("Init pubsub with projectID:%v", projectID))
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("initialize pub sub connection: %w", err)
	}
	log.Info().Msg("Successful pubsub init")
	return &Client{
		ctx:    ctx,
		client: client,
		topics: map[string]*pubsub.Topic{},
	}, nil
}

// Subscribe blocks receiving messages until the client context ends.
func (c *Client) Subscribe(subscriptionHandler SubscriptionHandler) {
	sub := c.client.Subscription(subscriptionHandler.SubscriptionId)
	err := sub.Receive(c.ctx, subscriptionHandler.Handler)
	if err != nil {
		log.Error().Err(err).Msg(fmt.Sprintf("Subscriber error for sub id %s", subscriptionHandler.SubscriptionId))
	}
}

func (c *Client) Publish(message Publishable) {
	topicName := message.GetEventTopicName()
	t, err := c.getTopic(topicName)
	if err != nil {
		log.Error().Err(err).Msg(fmt.Sprintf("Cant resolve topic %s", topicName))
		return
	}

	result := t.Publish(c.ctx, &pubsub.Message{Data: encodeMessage(message)})

	go func(res *pubsub.PublishResult) {
		_, err := res.Get(c.ctx)
		if err != nil {
			log.Warn().Err(err).Msg(fmt.Sprintf("Failed to publish message for %s", topicName))
		}
	}(result)
}

func (c *Client) Close() {
	c.topicsMutex.Lock()
	for _, t := range c.topics {
		t.Stop()
	}
	c.topicsMutex.Unlock()
	if err := c.client.Close(); err != nil {
		log.Warn().Err(err).Msg("Error closing pubsub client")
	}
}

func (c *Client) getTopic(topicName string) (*pubsub.Topic, error) {
	c.topicsMutex.Lock()
	defer c.topicsMutex.Unlock()

	if t, ok := c.topics[topicName]; ok {
		return t, nil
	}
	t := c.client.Topic(topicName)
	exists, err := t.Exists(c.ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		log.Info().Msg(fmt.Sprintf("Topic %s does not exist. Creating new", topicName))
		t, err = c.client.CreateTopic(c.ctx, topicName)
		if err != nil {
			return nil, err
		}
	}
	c.topics[topicName] = t
	return t, nil
}

func encodeMessage(message any) []byte {
	switch m := message.(type) {
	case string:
		return []byte(m)
	case []byte:
		return m
	default:
		bytes, _ := json.Marshal(message)
		return bytes
	}
}

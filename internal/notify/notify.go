// Package notify emits one side-channel event per accepted game transition.
// Delivery is best effort and never part of a transition's outcome.
package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/pubsub"
)

type EventType string

const (
	GameCreated         EventType = "game_created"
	PlayerJoined        EventType = "player_joined"
	GameDelegated       EventType = "game_delegated"
	RandomnessRequested EventType = "randomness_requested"
	GameStarted         EventType = "game_started"
	PlayerShot          EventType = "player_shot"
	TurnChanged         EventType = "turn_changed"
	PlayerEliminated    EventType = "player_eliminated"
	GameFinished        EventType = "game_finished"
	GameCommitted       EventType = "game_committed"
	GameUndelegated     EventType = "game_undelegated"
	GameSettled         EventType = "game_settled"
	GameCancelled       EventType = "game_cancelled"
)

type Event struct {
	Id      string    `json:"id"`
	Type    EventType `json:"type"`
	GameId  uint64    `json:"gameId"`
	At      int64     `json:"timestamp"`
	Payload any       `json:"data,omitempty"`
}

func NewEvent(eventType EventType, gameId uint64, at time.Time, payload any) Event {
	return Event{
		Id:      uuid.New().String(),
		Type:    eventType,
		GameId:  gameId,
		At:      at.UnixMilli(),
		Payload: payload,
	}
}

// GameTopic is the websocket topic observers of a game subscribe to.
func GameTopic(gameId uint64) string {
	return fmt.Sprintf("game/%d", gameId)
}

type Notifier interface {
	Notify(events ...Event)
}

// Broadcaster is the websocket hub.
type Broadcaster interface {
	Publish(topic string, event any)
}

type topicEvent struct {
	Event
	topic string
}

func (e topicEvent) GetEventTopicName() string {
	return e.topic
}

// Fanout sends events to websocket observers of the game and, when a
// publisher is configured, to the events topic.
type Fanout struct {
	hub       Broadcaster
	publisher pubsub.Publisher
	topic     string
}

func NewFanout(hub Broadcaster, publisher pubsub.Publisher, topic string) *Fanout {
	return &Fanout{hub: hub, publisher: publisher, topic: topic}
}

func (f *Fanout) Notify(events ...Event) {
	for _, event := range events {
		if f.hub != nil {
			f.hub.Publish(GameTopic(event.GameId), event)
		}
		if f.publisher != nil && f.topic != "" {
			f.publisher.Publish(topicEvent{Event: event, topic: f.topic})
		}
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Notify(...Event) {}

package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeTimeout = 5 * time.Second
	outboxSize   = 64
)

var singletonMutex sync.Mutex

// Listener is the part of a websocket connection the hub writes to.
type Listener interface {
	WriteJSON(v any) error
	SetWriteDeadline(t time.Time) error
}

// subscription owns the only writer of one connection.
type subscription struct {
	conn   Listener
	outbox chan any
}

func (s *subscription) run(topic string) {
	for event := range s.outbox {
		if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("Error setting ws write deadline")
		}
		if err := s.conn.WriteJSON(event); err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("Error writing ws message")
		}
	}
}

type WebSocketNotificationHub struct {
	registrationMutex sync.Mutex
	listeners         map[string][]*subscription
}

func (hub *WebSocketNotificationHub) RegisterListener(topic string, conn Listener) {
	hub.registrationMutex.Lock()
	defer hub.registrationMutex.Unlock()

	s := &subscription{conn: conn, outbox: make(chan any, outboxSize)}
	hub.listeners[topic] = append(hub.listeners[topic], s)
	go s.run(topic)
}

func (hub *WebSocketNotificationHub) UnregisterListener(topic string, conn Listener) {
	hub.registrationMutex.Lock()
	defer hub.registrationMutex.Unlock()

	remaining := hub.listeners[topic][:0]
	for _, s := range hub.listeners[topic] {
		if s.conn == conn {
			close(s.outbox)
			continue
		}
		remaining = append(remaining, s)
	}
	if len(remaining) == 0 {
		delete(hub.listeners, topic)
		return
	}
	hub.listeners[topic] = remaining
}

// Publish queues event for every listener of the topic and returns without
// waiting on any socket. A listener whose queue is full misses the event.
func (hub *WebSocketNotificationHub) Publish(targetTopic string, event any) {
	hub.registrationMutex.Lock()
	defer hub.registrationMutex.Unlock()

	for _, s := range hub.listeners[targetTopic] {
		select {
		case s.outbox <- event:
		default:
			log.Warn().Str("topic", targetTopic).Msg("Slow ws listener, dropping message")
		}
	}
}

func (hub *WebSocketNotificationHub) ListenerCount(topic string) int {
	hub.registrationMutex.Lock()
	defer hub.registrationMutex.Unlock()

	return len(hub.listeners[topic])
}

var notificationHubSingleton *WebSocketNotificationHub

func NewNotificationHub() *WebSocketNotificationHub {
	singletonMutex.Lock()
	defer singletonMutex.Unlock()

	if notificationHubSingleton == nil {
		notificationHubSingleton = newHub()
	}

	return notificationHubSingleton
}

func newHub() *WebSocketNotificationHub {
	return &WebSocketNotificationHub{
		listeners: make(map[string][]*subscription),
	}
}

var _ Listener = (*websocket.Conn)(nil)

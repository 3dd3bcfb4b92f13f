package services

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"tightlines/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 15 * time.Second
	sendBufferSize = 32
)

// Message types pushed to connected clients.
const (
	MessageAchievementUnlocked = "achievement_unlocked"
)

// Message is the JSON envelope written to websocket clients.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type subscriber struct {
	send chan Message
}

// Hub fans unlock notifications out to every open connection of a user.
// Delivery is best effort: a subscriber with a full buffer misses the message.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint]map[*subscriber]struct{}
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[uint]map[*subscriber]struct{}),
		logger: logger.Named("hub"),
	}
}

// Subscribe registers a receiver for userID. The returned func removes it and
// closes the channel.
func (h *Hub) Subscribe(userID uint) (<-chan Message, func()) {
	sub := &subscriber{send: make(chan Message, sendBufferSize)}

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*subscriber]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.send, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[userID], sub)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			h.mu.Unlock()
			close(sub.send)
		})
	}
}

// Connections returns the number of open subscriptions for userID.
func (h *Hub) Connections(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Publish queues msg for every subscriber of userID without blocking.
func (h *Hub) Publish(userID uint, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[userID] {
		select {
		case sub.send <- msg:
		default:
			h.logger.Warn("send buffer full, dropping message",
				zap.Uint("user_id", userID),
				zap.String("type", msg.Type))
		}
	}
}

// AchievementUnlocked satisfies achievements.Notifier.
func (h *Hub) AchievementUnlocked(userID uint, a models.Achievement) {
	h.Publish(userID, Message{Type: MessageAchievementUnlocked, Payload: a})
}

// Serve pumps hub messages to conn until the client goes away. It blocks for
// the life of the connection, as fiber's websocket handler expects.
func (h *Hub) Serve(conn *websocket.Conn, userID uint) {
	msgs, unsubscribe := h.Subscribe(userID)
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					h.logger.Debug("websocket read error", zap.Uint("user_id", userID), zap.Error(err))
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	h.logger.Debug("websocket connected", zap.Uint("user_id", userID))
	for {
		select {
		case msg := <-msgs:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("websocket write failed", zap.Uint("user_id", userID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			h.logger.Debug("websocket disconnected", zap.Uint("user_id", userID))
			return
		}
	}
}

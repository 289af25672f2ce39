package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Hub maintains cast_id -> set of feed connections and broadcasts cast
// activity to them. With Redis configured, events travel through the cast
// channel so every instance delivers them exactly once.
type Hub struct {
	// castID -> map[clientID]*Client
	casts    map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per cast
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishCastEvent(castID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to cast channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeCast(castID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. Both Redis sides may be nil for a single instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		casts:    make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to a cast feed. The first client of a cast starts its
// Redis subscription; the round trip happens outside the hub lock.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	first := h.casts[c.CastID] == nil
	if first {
		h.casts[c.CastID] = make(map[string]*Client)
	}
	h.casts[c.CastID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined cast feed", zap.String("client_id", c.ID), zap.String("cast_id", c.CastID.String()))

	if first && h.redisSub != nil {
		h.subscribe(c.CastID)
	}
}

// subscribe keeps the new subscription only if the cast still has clients and
// no other Register stored one meanwhile.
func (h *Hub) subscribe(castID uuid.UUID) {
	cancel, err := h.redisSub.SubscribeCast(castID, func(event string, payload []byte) {
		h.Broadcast(castID, event, json.RawMessage(payload))
	})
	if err != nil {
		h.logger.Warn("cast feed subscribe failed", zap.String("cast_id", castID.String()), zap.Error(err))
		return
	}
	h.mu.Lock()
	_, live := h.casts[castID]
	_, held := h.subs[castID]
	if live && !held {
		h.subs[castID] = cancel
		cancel = nil
	}
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Unregister removes a client from a cast feed. Cancels the Redis subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	var cancel func()
	h.mu.Lock()
	if m, ok := h.casts[c.CastID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.casts, c.CastID)
			cancel = h.subs[c.CastID]
			delete(h.subs, c.CastID)
		}
	}
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	h.logger.Debug("client left cast feed", zap.String("client_id", c.ID), zap.String("cast_id", c.CastID.String()))
}

// Broadcast sends a message to all local clients of a cast feed.
func (h *Hub) Broadcast(castID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.casts[castID] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// PublishCastEvent delivers a cast activity event to every feed. With Redis it
// publishes only and lets the subscription broadcast, so local clients are not
// served twice.
func (h *Hub) PublishCastEvent(castID uuid.UUID, event string, payload []byte) error {
	if h.redis != nil {
		return h.redis.PublishCastEvent(castID, event, payload)
	}
	h.Broadcast(castID, event, json.RawMessage(payload))
	return nil
}

// Listeners returns the number of connected clients on a cast feed.
func (h *Hub) Listeners(castID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.casts[castID])
}

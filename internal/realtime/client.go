package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pingInterval   = 30 * time.Second
	pongWait       = 60 * time.Second
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Feed events sent by the server itself rather than by a cast service.
const (
	EventSubscribed = "subscribed"
	EventPong       = "pong"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Feeds are read-only and authenticated by token; CORS guards the HTTP API.
	CheckOrigin: func(*http.Request) bool { return true },
}

// WSMessage is the envelope of every feed frame.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client is one subscription to a cast feed.
type Client struct {
	ID        string
	CastID    uuid.UUID
	ProfileID uuid.UUID
	hub       *Hub
	conn      *websocket.Conn
	send      chan WSMessage
	logger    *zap.Logger
}

// NewClient creates a feed client. conn may be nil when the caller drains
// Messages itself.
func NewClient(hub *Hub, castID, profileID uuid.UUID, conn *websocket.Conn, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		ID:        uuid.NewString(),
		CastID:    castID,
		ProfileID: profileID,
		hub:       hub,
		conn:      conn,
		send:      make(chan WSMessage, sendBuffer),
		logger:    logger,
	}
}

// Messages exposes the outbound queue of the client.
func (c *Client) Messages() <-chan WSMessage { return c.send }

func (c *Client) enqueue(msg WSMessage) {
	select {
	case c.send <- msg:
	default:
		c.logger.Debug("feed client lagging, frame dropped", zap.String("client_id", c.ID))
	}
}

var (
	errMissingParams = errors.New("cast_id and token required")
	errBadCastID     = errors.New("invalid cast_id")
)

func feedParams(c *gin.Context) (uuid.UUID, string, error) {
	raw, token := c.Query("cast_id"), c.Query("token")
	if raw == "" || token == "" {
		return uuid.Nil, "", errMissingParams
	}
	castID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, "", errBadCastID
	}
	return castID, token, nil
}

// ServeWs upgrades GET /ws?cast_id=&token= and streams the cast feed. The
// first frame confirms the subscription. castExists may be nil.
func ServeWs(hub *Hub, logger *zap.Logger, validate func(token string) (uuid.UUID, error), castExists func(c *gin.Context, id uuid.UUID) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		castID, token, err := feedParams(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		profileID, err := validate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if castExists != nil && !castExists(c, castID) {
			c.JSON(http.StatusNotFound, gin.H{"error": "cast not found"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.String("cast_id", castID.String()), zap.Error(err))
			return
		}

		client := NewClient(hub, castID, profileID, conn, logger)
		hub.Register(client)
		ack, _ := json.Marshal(gin.H{"cast_id": castID})
		client.enqueue(WSMessage{Event: EventSubscribed, Data: ack})
		go client.writePump()
		client.readPump()
	}
}

// readPump answers "ping" frames and keeps the connection alive until the
// peer goes away.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	extend := func() { _ = c.conn.SetReadDeadline(time.Now().Add(pongWait)) }
	c.conn.SetReadLimit(maxMessageSize)
	extend()
	c.conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("feed read error", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}
		extend()
		if msg.Event == "ping" {
			c.enqueue(WSMessage{Event: EventPong})
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package websocket

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/briantruongvn/ngocson-tss-converter/internal/config"
)

// maxMessageSize bounds inbound client messages; clients only send
// heartbeats.
const maxMessageSize = 512

// Client pumps messages between one websocket connection and the hub.
type Client struct {
	hub  *Hub
	conn Connection
	send chan []byte

	id          string
	remoteAddr  string
	connectedAt time.Time

	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration

	logger *slog.Logger
}

// NewClient wraps a gorilla connection for the hub.
func NewClient(hub *Hub, conn *websocket.Conn, cfg config.WebSocketConfig, logger *slog.Logger) *Client {
	return NewClientWithConnection(hub, WrapConnection(conn), cfg, logger)
}

// NewClientWithConnection creates a client over any Connection; tests
// pass a mock.
func NewClientWithConnection(hub *Hub, conn Connection, cfg config.WebSocketConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.New().String()

	writeWait := cfg.WriteTimeout
	if writeWait <= 0 {
		writeWait = 10 * time.Second
	}
	pongWait := cfg.PongWait
	if pongWait <= 0 {
		pongWait = config.WebSocketPongWait
	}
	pingPeriod := cfg.PingPeriod
	if pingPeriod <= 0 || pingPeriod >= pongWait {
		pingPeriod = pongWait * 9 / 10
	}

	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, 256),
		id:          id,
		remoteAddr:  conn.RemoteAddr(),
		connectedAt: time.Now(),
		writeWait:   writeWait,
		pongWait:    pongWait,
		pingPeriod:  pingPeriod,
		logger: logger.With(
			slog.String("component", "websocket_client"),
			slog.String("client_id", id)),
	}
}

// ID returns the client identifier.
func (c *Client) ID() string { return c.id }

// ReadPump consumes inbound frames until the peer goes away. Clients
// have nothing to say beyond keepalives, so payloads are discarded.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
		c.logger.Info("client read pump stopped",
			slog.Duration("connected_for", time.Since(c.connectedAt)))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("unexpected close", slog.String("error", err.Error()))
			}
			return
		}
		// Inbound text frames reset the read deadline like pongs do,
		// so browser clients without ping support stay connected.
		c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	}
}

// WritePump delivers hub messages and keeps the connection alive with
// pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("write failed", slog.String("error", err.Error()))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS attaches a new connection to the hub and starts its pumps.
func ServeWS(hub *Hub, conn *websocket.Conn, cfg config.WebSocketConfig, logger *slog.Logger) {
	client := NewClient(hub, conn, cfg, logger)
	hub.Register(client)
	go client.WritePump()
	go client.ReadPump()
}

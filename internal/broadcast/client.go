package broadcast

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to the peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from the peer.
	maxMessageSize = 4096
	// Outbound queue depth per client.
	sendQueueSize = 256
)

// Client is one websocket connection.
type Client struct {
	SocketID string
	conn     *websocket.Conn
	logger   *zap.Logger

	sendOnce sync.Once
	send     chan []byte
}

// NewClient wraps an upgraded connection.
func NewClient(socketID string, conn *websocket.Conn, logger *zap.Logger) *Client {
	return &Client{
		SocketID: socketID,
		conn:     conn,
		logger:   logger.With(zap.String("socket_id", socketID)),
		send:     make(chan []byte, sendQueueSize),
	}
}

// enqueue queues a frame for delivery. Returns false when the queue is full.
func (c *Client) enqueue(payload []byte) bool {
	defer func() {
		// Losing the race against closeSend is fine; the client is gone.
		_ = recover()
	}()
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.sendOnce.Do(func() { close(c.send) })
}

// WritePump drains the send queue to the connection and keeps the peer alive
// with pings. It exits when the hub closes the send channel.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Debug("Write failed", zap.Error(err))
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

// ReadPump reads inbound frames and hands them to onMessage. It unregisters
// the client from the hub on exit.
func (c *Client) ReadPump(hub *Hub, onMessage func(payload []byte), onClose func()) {
	defer func() {
		hub.Unregister(c.SocketID)
		_ = c.conn.Close()
		if onClose != nil {
			onClose()
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("Unexpected close", zap.Error(err))
			}
			return
		}
		onMessage(payload)
	}
}

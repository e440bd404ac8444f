package handlers

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mossy-p/call-signaling/internal/relay"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. SDP blobs fit comfortably.
	maxMessageSize = 64 * 1024

	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

const (
	stateOpen int32 = iota
	stateClosing
	stateClosed
)

// Client represents a WebSocket client connection
type Client struct {
	id    string
	conn  *websocket.Conn
	send  chan []byte
	done  chan struct{}
	state atomic.Int32

	relay  *relay.Relay
	logger *zap.Logger
}

// ID implements relay.Peer
func (c *Client) ID() string { return c.id }

// Open implements relay.Peer
func (c *Client) Open() bool { return c.state.Load() == stateOpen }

// Send implements relay.Peer. It never blocks: a full buffer drops the frame.
func (c *Client) Send(data []byte) bool {
	if !c.Open() {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		c.logger.Warn("send buffer full, dropping message", zap.String("peer_id", c.id))
		return false
	}
}

// HandleSignaling upgrades the request and attaches the socket to the relay
func HandleSignaling(r *relay.Relay, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("failed to upgrade connection", zap.Error(err))
			return
		}

		client := &Client{
			id:     uuid.New().String(),
			conn:   conn,
			send:   make(chan []byte, sendBufferSize),
			done:   make(chan struct{}),
			relay:  r,
			logger: logger,
		}
		r.Register(client)

		logger.Debug("peer connected",
			zap.String("peer_id", client.id),
			zap.String("remote_addr", conn.RemoteAddr().String()),
		)

		go client.writePump()
		go client.readPump()
	}
}

// readPump is the only reader of the connection. Its deferred cleanup is
// the single place a client is disconnected from the relay.
func (c *Client) readPump() {
	defer func() {
		c.state.Store(stateClosing)
		c.relay.Disconnect(c.id)
		close(c.done)
		c.conn.Close()
		c.state.Store(stateClosed)
		c.logger.Debug("peer disconnected", zap.String("peer_id", c.id))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Info("websocket error", zap.String("peer_id", c.id), zap.Error(err))
			}
			return
		}
		c.relay.HandleMessage(c.id, message)
	}
}

// writePump is the only writer of the connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.state.CompareAndSwap(stateOpen, stateClosing)
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("failed to write message", zap.String("peer_id", c.id), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

package realtime

import (
	"sync"

	"github.com/gorilla/websocket"

	realtimeTypes "github.com/chasqui-io/chasqui/pkg/realtime"
)

const sendBufferSize = 64

// Client is one WebSocket consumer: a buffered outbound queue and the
// write loop that drains it. Topic membership lives in the hub.
type Client struct {
	id   string
	conn *websocket.Conn

	send      chan realtimeTypes.ServerEnvelope
	closeOnce sync.Once
	closed    chan struct{}
}

func NewClient(id string, conn *websocket.Conn) *Client {
	return &Client{
		id:     id,
		conn:   conn,
		send:   make(chan realtimeTypes.ServerEnvelope, sendBufferSize),
		closed: make(chan struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Queue enqueues msg for delivery. It reports false when the client is
// closed or its buffer is full; the hub treats that as a dead client.
func (c *Client) Queue(msg realtimeTypes.ServerEnvelope) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// WriteLoop drains the send queue onto the socket. It returns when the
// client is closed or a write fails.
func (c *Client) WriteLoop() {
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

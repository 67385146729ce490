package websocket

import (
	"sync"

	fws "github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

const sendBuffer = 64

// Conn is the part of a websocket connection the relay writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one live socket of a user. Only its write loop writes to conn.
type Client struct {
	ID     uuid.UUID
	UserID uuid.UUID

	conn   Conn
	send   chan []byte
	done   chan struct{}
	exited chan struct{}
	once   sync.Once
}

func NewClient(userID uuid.UUID, conn Conn) *Client {
	return &Client{
		ID:     uuid.New(),
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

// enqueue never blocks. A client whose buffer is full is closed.
func (c *Client) enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		c.Close()
		return false
	}
}

// writeLoop is the only writer to conn. It never touches conn once done is
// closed, and closes exited when it returns.
func (c *Client) writeLoop(onExit func(*Client)) {
	defer close(c.exited)
	defer onExit(c)
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			select {
			case <-c.done:
				return
			default:
			}
			if err := c.conn.WriteMessage(fws.TextMessage, payload); err != nil {
				c.Close()
				return
			}
		}
	}
}

func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Exited is closed once the write loop has stopped using the connection.
// Owners of a pooled connection must wait for it before releasing the conn.
func (c *Client) Exited() <-chan struct{} {
	return c.exited
}

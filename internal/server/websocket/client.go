package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/radlabs/rampd/internal/domain"
)

var ErrClientInactive = errors.New("client is inactive")

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Client wraps one subscriber connection. Outbound updates flow through a
// buffered channel; a full buffer drops the update rather than blocking the
// broadcaster.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan *domain.StatusUpdate
	done chan struct{}

	closeOnce sync.Once
	active    bool
}

func NewClient(conn *websocket.Conn) *Client {
	client := &Client{
		id:     uuid.New().String(),
		conn:   conn,
		send:   make(chan *domain.StatusUpdate, 64),
		done:   make(chan struct{}),
		active: true,
	}
	go client.writePump()
	go client.readPump()
	return client
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) Send(update *domain.StatusUpdate) error {
	if !c.active {
		return ErrClientInactive
	}
	select {
	case c.send <- update:
		return nil
	case <-c.done:
		return ErrClientInactive
	default:
		return errors.New("send buffer full")
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.active = false
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

func (c *Client) IsActive() bool {
	return c.active
}

// Wait blocks until the connection is torn down, which is what the HTTP
// handler needs to keep the upgraded request alive.
func (c *Client) Wait() {
	<-c.done
}

// readPump drains inbound frames. Subscribers never send meaningful payloads;
// reading is only needed to process control frames and detect closure.
func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case update := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			data, err := json.Marshal(update)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

// Package bus connects the assistant to a websocket hub: "ask" messages
// addressed to it become turns and every reply is broadcast back.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	Shard     = "mia"
	Broadcast = "all"

	KindAsk   = "ask"
	KindReply = "reply"
)

type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

type Client struct {
	url       string
	reconnect time.Duration

	mu   sync.Mutex
	conn *websocket.Conn
}

func Dial(ctx context.Context, url string, reconnect time.Duration) (*Client, error) {
	if reconnect <= 0 {
		reconnect = time.Second
	}

	c := &Client{url: url, reconnect: reconnect}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c.conn = conn

	log.Info("Connected to bus", "url", url)
	return c, nil
}

// Listen reads until ctx is done, redialing when the hub goes away, and
// calls handle for every ask addressed to this shard.
func (c *Client) Listen(ctx context.Context, handle func(Message)) error {
	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.conn != nil {
			c.conn.Close()
		}
	})
	defer stop()

	for {
		conn := c.current()
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if isClosed(err) || errors.Is(err, websocket.ErrCloseSent) {
				log.Warn("Bus connection lost, reconnecting", "url", c.url, "err", err)
			} else {
				log.Error("Bus read failed, reconnecting", "err", err)
			}
			if err := c.redial(ctx); err != nil {
				return err
			}
			continue
		}

		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			log.Warn("Failed to parse bus message", "msg", string(data), "err", err)
			continue
		}
		if !addressed(m) {
			continue
		}
		handle(m)
	}
}

func addressed(m Message) bool {
	return m.Kind == KindAsk && (m.To == Shard || m.To == Broadcast) && m.From != Shard
}

func (c *Client) redial(ctx context.Context) error {
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err == nil {
			c.mu.Lock()
			c.conn.Close()
			c.conn = conn
			c.mu.Unlock()
			log.Info("Reconnected to bus", "url", c.url)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnect):
		}
	}
}

func (c *Client) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Client) Send(m Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// Sink broadcasts every line as a reply.
type Sink struct {
	Client *Client
}

func (s Sink) Say(_ context.Context, text string) error {
	return s.Client.Send(Message{From: Shard, To: Broadcast, Kind: KindReply, Content: text})
}

func isClosed(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure)
}

package bus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hub struct {
	srv   *httptest.Server
	conns chan *websocket.Conn
}

func newHub(t *testing.T) *hub {
	t.Helper()

	h := &hub{conns: make(chan *websocket.Conn, 4)}
	up := websocket.Upgrader{}
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.conns <- conn
	}))
	t.Cleanup(h.srv.Close)
	return h
}

func (h *hub) url() string {
	return "ws" + strings.TrimPrefix(h.srv.URL, "http")
}

func (h *hub) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-h.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("client did not connect")
		return nil
	}
}

func TestListenDeliversAddressedAsks(t *testing.T) {
	h := newHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := Dial(ctx, h.url(), 10*time.Millisecond)
	require.NoError(t, err)
	server := h.accept(t)

	got := make(chan Message, 4)
	done := make(chan error, 1)
	go func() { done <- c.Listen(ctx, func(m Message) { got <- m }) }()

	for _, raw := range []string{
		`not json`,
		`{"from":"hud","to":"vox","kind":"ask","content":"elsewhere"}`,
		`{"from":"hud","to":"mia","kind":"reply","content":"wrong kind"}`,
		`{"from":"hud","to":"mia","kind":"ask","content":"mia bhai what is 2+2"}`,
	} {
		require.NoError(t, server.WriteMessage(websocket.TextMessage, []byte(raw)))
	}

	select {
	case m := <-got:
		assert.Equal(t, "mia bhai what is 2+2", m.Content)
		assert.Equal(t, "hud", m.From)
	case <-time.After(2 * time.Second):
		t.Fatal("ask not delivered")
	}
	assert.Len(t, got, 0)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("listen did not stop")
	}
}

func TestSinkBroadcastsReply(t *testing.T) {
	h := newHub(t)
	ctx := context.Background()

	c, err := Dial(ctx, h.url(), 0)
	require.NoError(t, err)
	defer c.Close()
	server := h.accept(t)

	require.NoError(t, Sink{Client: c}.Say(ctx, "4"))

	var m Message
	require.NoError(t, server.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, server.ReadJSON(&m))
	assert.Equal(t, Message{From: Shard, To: Broadcast, Kind: KindReply, Content: "4"}, m)
}

func TestListenReconnects(t *testing.T) {
	h := newHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := Dial(ctx, h.url(), 10*time.Millisecond)
	require.NoError(t, err)
	first := h.accept(t)

	got := make(chan Message, 1)
	go c.Listen(ctx, func(m Message) { got <- m })

	require.NoError(t, first.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "restart")))
	first.Close()

	second := h.accept(t)
	require.NoError(t, second.WriteJSON(Message{From: "hud", To: Broadcast, Kind: KindAsk, Content: "again"}))

	select {
	case m := <-got:
		assert.Equal(t, "again", m.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("ask after reconnect not delivered")
	}
}

func TestAddressed(t *testing.T) {
	assert.True(t, addressed(Message{From: "x", To: Shard, Kind: KindAsk}))
	assert.True(t, addressed(Message{From: "x", To: Broadcast, Kind: KindAsk}))
	assert.False(t, addressed(Message{From: Shard, To: Broadcast, Kind: KindAsk}))
	assert.False(t, addressed(Message{From: "x", To: Shard, Kind: KindReply}))
}

package interpreter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NotCoffee418/teleinfo/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Sends payloads on every connection, then closes it when hangUp is set.
func newWsServer(t *testing.T, hangUp bool, payloads ...string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var connections atomic.Int32
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		connections.Add(1)

		for _, p := range payloads {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(p)); err != nil {
				return
			}
		}
		if hangUp {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &connections
}

func testListener(srv *httptest.Server) *Listener {
	u, _ := url.Parse(srv.URL)
	l := NewListener(u.Host, false)
	l.BaseRetryDelay = 10 * time.Millisecond
	l.MaxRetryDelay = 20 * time.Millisecond
	l.ReadTimeout = 2 * time.Second
	l.PingInterval = 50 * time.Millisecond
	return l
}

func TestRun_DeliversMessages(t *testing.T) {
	srv, _ := newWsServer(t, false,
		`{"event":"teleinfo_EAST_read_event","key":"EAST","value":"000123456"}`,
		`not json`,
		`{"key":"IRMS1","value":"004"}`,
	)

	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan *types.DatapointMessage, 4)
	errc := make(chan error, 1)
	go func() {
		errc <- testListener(srv).Run(ctx, func(msg *types.DatapointMessage) { received <- msg })
	}()

	for _, key := range []string{"EAST", "IRMS1"} {
		select {
		case msg := <-received:
			assert.Equal(t, key, msg.Key)
		case <-time.After(2 * time.Second):
			t.Fatalf("no message for %s", key)
		}
	}

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestRun_ReconnectsAfterDrop(t *testing.T) {
	srv, connections := newWsServer(t, true, `{"key":"EAST","value":"1"}`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var count atomic.Int32
	go testListener(srv).Run(ctx, func(*types.DatapointMessage) { count.Add(1) })

	assert.Eventually(t, func() bool {
		return connections.Load() >= 2 && count.Load() >= 2
	}, 3*time.Second, 10*time.Millisecond)
}

func TestRun_GivesUp(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	l := testListener(srv)
	srv.Close()
	l.MaxRetries = 3

	err := l.Run(context.Background(), func(*types.DatapointMessage) {})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxRetries)
}

func TestNewListener_Scheme(t *testing.T) {
	assert.Equal(t, "ws://pi.local:9039/ws", NewListener("pi.local:9039", false).URL.String())
	assert.Equal(t, "wss://pi.local:9039/ws", NewListener("pi.local:9039", true).URL.String())
}

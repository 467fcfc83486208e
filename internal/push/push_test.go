package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"canteen/internal/hub"
	"canteen/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDialAndReceiveBroadcast(t *testing.T) {
	h := hub.New(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Close()

	stream, err := NewDialer(wsURL(srv), nil).Dial(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	require.Eventually(t, func() bool { return h.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	h.Broadcast(model.EventOrderUpdated, &model.Order{ID: 42, CanteenID: 1, Status: model.StatusPaid})

	ev, err := stream.Read()
	require.NoError(t, err)
	assert.Equal(t, model.EventOrderUpdated, ev.Type)
	assert.True(t, ev.Concerns(42))
	assert.Equal(t, model.StatusPaid, ev.Payload.Status)
}

func TestReadSkipsMalformedMessages(t *testing.T) {
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("garbage"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"payload":{}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"order.created","payload":{"order_id":5}}`))
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	stream, err := NewDialer(wsURL(srv), nil).Dial(context.Background())
	require.NoError(t, err)

	ev, err := stream.Read()
	require.NoError(t, err)
	assert.Equal(t, model.EventOrderCreated, ev.Type)
	require.NotNil(t, ev.Payload.OrderID)
	assert.Equal(t, int64(5), *ev.Payload.OrderID)

	require.NoError(t, stream.Close())
	_, err = stream.Read()
	assert.Error(t, err)
}

func TestDialUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewDialer(wsURL(srv), nil).Dial(context.Background())
	assert.ErrorIs(t, err, errors.Unauthorized)
}

func TestCloseUnblocksRead(t *testing.T) {
	h := hub.New(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Close()

	stream, err := NewDialer(wsURL(srv), nil).Dial(context.Background())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := stream.Read()
		done <- err
	}()
	require.NoError(t, stream.Close())

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Read did not return after Close")
	}
}

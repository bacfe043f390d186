package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, r.URL.Query().Get("channel"))
	}))
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, channel string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?channel=" + channel
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubDeliversOnlyToChannel(t *testing.T) {
	hub, srv := startHub(t)

	tokens := dial(t, srv, ChannelTokens)
	other := dial(t, srv, "verifications")
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	hub.PublishRecord(ChannelTokens, "INSERT", map[string]string{"ticker": "CHAR"})

	tokens.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := tokens.ReadMessage()
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal(msg, &event))
	assert.Equal(t, ChannelTokens, event.Channel)
	assert.Equal(t, "INSERT", event.Type)
	assert.JSONEq(t, `{"ticker":"CHAR"}`, string(event.Record))

	other.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	_, _, err = other.ReadMessage()
	assert.Error(t, err, "listener on another channel must not receive the event")
}

func TestHubUnregistersClosedClients(t *testing.T) {
	hub, srv := startHub(t)

	conn := dial(t, srv, ChannelTokens)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestParseNotification(t *testing.T) {
	event, err := ParseNotification(`{"table":"tokens","op":"UPDATE","record":{"id":"1","progress":40}}`)
	require.NoError(t, err)
	assert.Equal(t, "tokens", event.Channel)
	assert.Equal(t, "UPDATE", event.Type)

	_, err = ParseNotification(`{"op":"UPDATE"}`)
	assert.Error(t, err)
	_, err = ParseNotification(`not json`)
	assert.Error(t, err)
}

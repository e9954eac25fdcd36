package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"readthis-backend/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWSServer(t *testing.T) (*httptest.Server, *services.WSHub, *services.TokenManager) {
	t.Helper()
	hub := services.NewWSHub()
	tokens := services.NewTokenManager("test-secret", time.Hour, 24*time.Hour)
	media := services.NewMediaService(objectStoreStub{}, nil, 5<<20, "posts/DefaultBook.png")
	auth := services.NewAuthService(&userStoreStub{}, tokens, media, nil)

	srv := httptest.NewServer(NewRouter(Routes{
		WS:            NewWebSocketHandler(hub, auth, []string{"https://readthis.app"}),
		Authenticator: auth,
	}))
	t.Cleanup(func() {
		hub.CloseAll()
		srv.Close()
	})
	return srv, hub, tokens
}

func wsURL(srv *httptest.Server, token string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
}

func readMessage(t *testing.T, conn *websocket.Conn) services.WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg services.WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocket_ConnectAndPing(t *testing.T) {
	srv, hub, tokens := newWSServer(t)
	userID := uuid.NewString()
	pair, err := tokens.Issue(userID)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, pair.AccessToken), nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, services.EventConnected, readMessage(t, conn).Type)
	assert.True(t, hub.IsOnline(userID))

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, services.EventPong, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "dance"}))
	msg := readMessage(t, conn)
	assert.Equal(t, services.EventError, msg.Type)
	assert.Equal(t, "Unknown message type", msg.Message)
}

func TestWebSocket_RejectsBadToken(t *testing.T) {
	srv, _, _ := newWSServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "garbage"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://readthis.app"})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(req), "no origin header")

	req.Header.Set("Origin", "https://readthis.app")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
}

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mossy-p/call-signaling/internal/models"
	"github.com/mossy-p/call-signaling/internal/relay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSignalingServer(t *testing.T) (*httptest.Server, *relay.Relay) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := relay.New(zap.NewNop(), nil)
	router := gin.New()
	router.GET("/ws", HandleSignaling(r, zap.NewNop()))
	router.GET("/api/rooms/:roomId", GetRoom(r))
	router.GET("/health", Health(r))

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts, r
}

func dialSignaling(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestClientRegistersAndDisconnectsOnce(t *testing.T) {
	ts, r := newSignalingServer(t)
	conn := dialSignaling(t, ts)

	assert.Eventually(t, func() bool { return r.Stats().Connections == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"join","roomId":"r1"}`)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var joined models.JoinedMessage
	require.NoError(t, json.Unmarshal(data, &joined))
	assert.Equal(t, models.JoinedMessage{Type: models.MessageTypeJoined, RoomID: "r1", IsInitiator: true}, joined)

	// A clean close frame takes the same path as an abrupt drop.
	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))

	assert.Eventually(t, func() bool {
		s := r.Stats()
		return s.Connections == 0 && s.Rooms == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBinaryFramesAreHandled(t *testing.T) {
	ts, _ := newSignalingServer(t)
	conn := dialSignaling(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte(`{"type":"join","roomId":"bin"}`)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)

	assert.Equal(t, websocket.TextMessage, mt)
	assert.JSONEq(t, `{"type":"joined","roomId":"bin","isInitiator":true}`, string(data))
}

func TestOversizedFrameClosesConnection(t *testing.T) {
	ts, r := newSignalingServer(t)
	conn := dialSignaling(t, ts)

	big := `{"type":"ice","roomId":"x","pad":"` + strings.Repeat("a", maxMessageSize) + `"}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(big)))

	assert.Eventually(t, func() bool { return r.Stats().Connections == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestGetRoom(t *testing.T) {
	ts, _ := newSignalingServer(t)
	conn := dialSignaling(t, ts)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"join","roomId":"lobby"}`)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.NoError(t, err)

	resp, err := ts.Client().Get(ts.URL + "/api/rooms/lobby")
	require.NoError(t, err)
	defer resp.Body.Close()

	var room models.RoomSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&room))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.RoomSnapshot{ID: "lobby", Members: 1, OpenMembers: 1, HasInitiator: true}, room)

	missing, err := ts.Client().Get(ts.URL + "/api/rooms/nope")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestGetICEServersNeverNull(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ice", GetICEServers(nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ice", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"iceServers":[]}`, w.Body.String())
}

func TestClientSendAfterCloseFails(t *testing.T) {
	c := &Client{id: "c", send: make(chan []byte, 1), done: make(chan struct{}), logger: zap.NewNop()}

	assert.True(t, c.Send([]byte("one")))
	assert.False(t, c.Send([]byte("two")), "full buffer drops")

	c.state.Store(stateClosing)
	assert.False(t, c.Open())
	<-c.send
	assert.False(t, c.Send([]byte("three")))
}

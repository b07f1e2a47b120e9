package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/app/orch"
	"github.com/dkeye/Chat/internal/config"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/dkeye/Chat/internal/storage/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const testAdminToken = "admin-secret"

type testServer struct {
	*httptest.Server
	orch *orch.Orchestrator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, &config.Config{
		Mode:          "test",
		StaticPath:    t.TempDir(),
		ReadLimit:     32768,
		PingPeriod:    time.Minute,
		Secret:        "test-secret",
		AdminToken:    testAdminToken,
		DefaultAvatar: "/images/default-avatar.png",
		SendBuffer:    64,
	})
}

func newTestServerWith(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	_, err = store.Migrate(context.Background())
	require.NoError(t, err)

	o := orch.New(store, app.DropPolicy{})
	o.DefaultAvatar = cfg.DefaultAvatar
	o.EnforceBans = true

	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(SetupRouter(ctx, cfg, o))
	t.Cleanup(func() {
		cancel()
		srv.Close()
		_ = store.Close()
	})
	return &testServer{Server: srv, orch: o}
}

func (s *testServer) postJSON(t *testing.T, path, token string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, s.URL+path, bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

type wsClient struct {
	conn *websocket.Conn
}

func (s *testServer) dial(t *testing.T) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &wsClient{conn: conn}
}

func (c *wsClient) send(t *testing.T, event string, data any) {
	t.Helper()
	require.NoError(t, c.conn.WriteJSON(map[string]any{"event": event, "data": data}))
}

// await reads frames until one carries event and decodes its data into v.
func (c *wsClient) await(t *testing.T, event string, v any) {
	t.Helper()
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var env app.Envelope
		require.NoError(t, c.conn.ReadJSON(&env), "waiting for %s", event)
		if env.Event != event {
			continue
		}
		if v != nil {
			require.NoError(t, json.Unmarshal(env.Data, v))
		}
		return
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	resp, err := http.Get(s.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGuestLoginSession(t *testing.T) {
	s := newTestServer(t)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	resp, err := client.Get(s.URL + "/api/session")
	require.NoError(t, err)
	var before map[string]any
	decodeBody(t, resp, &before)
	resp.Body.Close()
	require.Equal(t, false, before["logged"])

	resp, err = client.Post(s.URL+"/api/guest-login", "application/json", nil)
	require.NoError(t, err)
	var login struct {
		OK    bool   `json:"ok"`
		Guest string `json:"guest"`
	}
	decodeBody(t, resp, &login)
	resp.Body.Close()
	require.True(t, login.OK)
	require.True(t, strings.HasPrefix(login.Guest, "Guest_"))

	resp, err = client.Get(s.URL + "/api/session")
	require.NoError(t, err)
	var after map[string]any
	decodeBody(t, resp, &after)
	resp.Body.Close()
	require.Equal(t, true, after["logged"])
	require.Equal(t, login.Guest, after["username"])
}

func TestGuestLoginWithDefaultConfig(t *testing.T) {
	t.Setenv("CHAT_MODE", "test")
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	s := newTestServerWith(t, cfg)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	resp, err := client.Post(s.URL+"/api/guest-login", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(s.URL + "/api/session")
	require.NoError(t, err)
	var sess map[string]any
	decodeBody(t, resp, &sess)
	resp.Body.Close()
	require.Equal(t, true, sess["logged"])
}

func TestCreateAndListRooms(t *testing.T) {
	s := newTestServer(t)

	resp := s.postJSON(t, "/api/rooms", "", map[string]string{"name": "Lobby", "category": "General"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		RoomID domain.RoomID `json:"roomId"`
	}
	decodeBody(t, resp, &created)
	require.Positive(t, int64(created.RoomID))

	resp = s.postJSON(t, "/api/rooms", "", map[string]string{"description": "no name"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	c := s.dial(t)
	c.send(t, "joinRoom", map[string]any{"roomId": created.RoomID, "username": "alice"})
	c.await(t, app.EventRoomUsers, nil)

	listResp, err := http.Get(s.URL + "/api/rooms")
	require.NoError(t, err)
	defer listResp.Body.Close()
	var rooms []struct {
		ID    domain.RoomID `json:"id"`
		Name  string        `json:"name"`
		Users int           `json:"users"`
	}
	decodeBody(t, listResp, &rooms)
	require.Len(t, rooms, 1)
	require.Equal(t, "Lobby", rooms[0].Name)
	require.Equal(t, 1, rooms[0].Users)
}

func TestWebSocketChatFlowAndHistory(t *testing.T) {
	s := newTestServer(t)
	alice := s.dial(t)
	bob := s.dial(t)

	alice.send(t, "joinRoom", map[string]any{"roomId": "4", "username": "alice"})
	alice.await(t, app.EventRoomUsers, nil)
	bob.send(t, "joinRoom", map[string]any{"roomId": 4, "username": "bob"})
	var snap []core.MemberDTO
	bob.await(t, app.EventRoomUsers, &snap)
	require.Len(t, snap, 2)

	membersResp, err := http.Get(s.URL + "/api/rooms/4/members")
	require.NoError(t, err)
	defer membersResp.Body.Close()
	var members []core.MemberDTO
	decodeBody(t, membersResp, &members)
	require.Len(t, members, 2)

	bob.send(t, "sendMessage", map[string]any{"roomId": 4, "username": "bob", "message": "hello"})
	var msg app.ChatPayload
	alice.await(t, app.EventReceiveMessage, &msg)
	require.Equal(t, "bob", msg.Username)
	require.Equal(t, "hello", msg.Message)

	histResp, err := http.Get(s.URL + "/api/get-messages?roomId=4")
	require.NoError(t, err)
	defer histResp.Body.Close()
	var history []domain.Message
	decodeBody(t, histResp, &history)
	require.Len(t, history, 1)
	require.Equal(t, "hello", history[0].Body)

	alice.send(t, "ping", nil)
	alice.await(t, app.EventPong, nil)

	activeResp, err := http.Get(s.URL + "/api/active-users")
	require.NoError(t, err)
	defer activeResp.Body.Close()
	var active []struct {
		Username string `json:"username"`
	}
	decodeBody(t, activeResp, &active)
	require.Len(t, active, 1)
	require.Equal(t, "bob", active[0].Username)
}

func TestAdminRequiresToken(t *testing.T) {
	s := newTestServer(t)
	resp := s.postJSON(t, "/api/admin/set-host", "", map[string]string{"username": "alice"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = s.postJSON(t, "/api/admin/set-host", "wrong", map[string]string{"username": "alice"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAdminModeration(t *testing.T) {
	s := newTestServer(t)
	alice := s.dial(t)
	bob := s.dial(t)
	alice.send(t, "joinRoom", map[string]any{"roomId": 9, "username": "alice"})
	alice.await(t, app.EventRoomUsers, nil)
	bob.send(t, "joinRoom", map[string]any{"roomId": 9, "username": "bob"})
	bob.await(t, app.EventRoomUsers, nil)

	resp := s.postJSON(t, "/api/admin/set-host", testAdminToken, map[string]string{"username": "alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var notice app.SystemNotice
	bob.await(t, app.EventSystemMessage, &notice)
	require.Contains(t, notice.Message, "An administrator")
	require.Equal(t, domain.RoleHost, s.orch.Snapshot(9)[0].Role)

	bobID := s.orch.Snapshot(9)[1].ID
	resp = s.postJSON(t, "/api/admin/kick-user", testAdminToken, map[string]any{"socketId": bobID, "roomId": 9})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	bob.await(t, app.EventKicked, nil)
	require.Len(t, s.orch.Snapshot(9), 1)

	resp = s.postJSON(t, "/api/admin/ban-user", testAdminToken, map[string]any{"username": "alice", "roomId": "9"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	alice.await(t, app.EventKicked, nil)
	alice.await(t, app.EventSystemMessage, &notice)
	require.Contains(t, notice.Message, "was banned")
	require.Empty(t, s.orch.Snapshot(9))

	alice.send(t, "joinRoom", map[string]any{"roomId": 9, "username": "alice"})
	alice.await(t, app.EventSystemMessage, &notice)
	require.Contains(t, notice.Message, "You are banned")
	require.Empty(t, s.orch.Snapshot(9))

	resp = s.postJSON(t, "/api/admin/set-official/12345", testAdminToken, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLatestRoomsAndRoomInfo(t *testing.T) {
	s := newTestServer(t)
	var ids []domain.RoomID
	for i := range 6 {
		body := map[string]string{"name": fmt.Sprintf("room-%d", i)}
		if i == 5 {
			body["password"] = "secret"
		}
		resp := s.postJSON(t, "/api/rooms", "", body)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var created struct {
			RoomID domain.RoomID `json:"roomId"`
		}
		decodeBody(t, resp, &created)
		ids = append(ids, created.RoomID)
	}

	resp, err := http.Get(s.URL + "/api/latest-rooms")
	require.NoError(t, err)
	defer resp.Body.Close()
	var latest []struct {
		ID   domain.RoomID `json:"id"`
		Name string        `json:"name"`
	}
	decodeBody(t, resp, &latest)
	require.Len(t, latest, 5)
	require.Equal(t, ids[5], latest[0].ID)
	require.Equal(t, ids[1], latest[4].ID)

	infoResp, err := http.Get(s.URL + "/api/get-room-info?roomId=" + ids[5].String())
	require.NoError(t, err)
	defer infoResp.Body.Close()
	var info map[string]any
	decodeBody(t, infoResp, &info)
	require.Equal(t, "room-5", info["name"])
	require.Equal(t, true, info["locked"])
	require.NotContains(t, info, "password")

	missingResp, err := http.Get(s.URL + "/api/get-room-info?roomId=999")
	require.NoError(t, err)
	defer missingResp.Body.Close()
	var missing map[string]any
	decodeBody(t, missingResp, &missing)
	require.Empty(t, missing)

	badResp, err := http.Get(s.URL + "/api/get-room-info?roomId=lobby")
	require.NoError(t, err)
	defer badResp.Body.Close()
	require.Equal(t, http.StatusBadRequest, badResp.StatusCode)
}

func TestAdminStats(t *testing.T) {
	s := newTestServer(t)
	resp := s.postJSON(t, "/api/rooms", "", map[string]string{"name": "Lobby"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	c := s.dial(t)
	c.send(t, "joinRoom", map[string]any{"roomId": 1, "username": "alice"})
	c.await(t, app.EventRoomUsers, nil)

	req, err := http.NewRequest(http.MethodGet, s.URL+"/api/admin/stats", nil)
	require.NoError(t, err)
	unauth, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	unauth.Body.Close()
	require.Equal(t, http.StatusForbidden, unauth.StatusCode)

	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	statsResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer statsResp.Body.Close()
	require.Equal(t, http.StatusOK, statsResp.StatusCode)
	var st orch.Stats
	decodeBody(t, statsResp, &st)
	require.Equal(t, 1, st.Rooms)
	require.Equal(t, 1, st.Connections)
	require.Equal(t, 1, st.Members)
	require.NotNil(t, st.Week)
}

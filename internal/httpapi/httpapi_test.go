package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/astrolabio1417/legacy-osu-bot/internal/beatmap"
	"github.com/astrolabio1417/legacy-osu-bot/internal/irc"
	"github.com/astrolabio1417/legacy-osu-bot/internal/manager"
	"github.com/astrolabio1417/legacy-osu-bot/internal/osu"
	"github.com/astrolabio1417/legacy-osu-bot/internal/room"
)

type nullProvider struct{}

func (nullProvider) SearchBeatmapsets(_ beatmap.Filters, _ string) ([]osu.Beatmapset, string, error) {
	return nil, "", nil
}
func (nullProvider) Beatmap(int) (osu.Beatmap, error)       { return osu.Beatmap{}, fmt.Errorf("none") }
func (nullProvider) Beatmapset(int) (osu.Beatmapset, error) { return osu.Beatmapset{}, fmt.Errorf("none") }

func newTestServer(t *testing.T) (*httptest.Server, *manager.Manager) {
	t.Helper()
	log := zap.NewNop().Sugar()
	conn := irc.NewConn(irc.Config{Username: "admin", Password: "hunter2"}, log)
	m := manager.New(conn, log)

	auth := NewAuth("test-secret", "admin", "hunter2")
	api := NewAPI(m, nullProvider{}, auth, log)
	srv := httptest.NewServer(SetupRoutes(api))
	t.Cleanup(srv.Close)
	return srv, m
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, _ = out.ReadFrom(resp.Body)
	return resp, out.Bytes()
}

func loginToken(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/login", "", map[string]string{
		"username": "admin", "password": "hunter2",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var session struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body, &session))
	require.NotEmpty(t, session.Token)
	return session.Token
}

func TestLogin_RejectsBadCredentials(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/login", "", map[string]string{
		"username": "admin", "password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRooms_RequireSession(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/rooms", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/rooms", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRooms_CreateReadUpdateDelete(t *testing.T) {
	srv, m := newTestServer(t)
	token := loginToken(t, srv)

	// create
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/rooms", token, map[string]any{
		"name":     "late night lobby",
		"bot_mode": "AutoHost",
		"beatmap": map[string]any{
			"star": map[string]float64{"min": 5, "max": 6},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created room.Data
	require.NoError(t, json.Unmarshal(body, &created))
	require.Equal(t, "late night lobby", created.Name)
	require.Equal(t, "AutoHost", created.BotMode)
	require.True(t, created.IsCreated)
	require.Equal(t, beatmap.Range{Min: 5, Max: 6}, created.Beatmap.Star)

	// read
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/rooms/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched room.Data
	require.NoError(t, json.Unmarshal(body, &fetched))
	require.Equal(t, created.ID, fetched.ID)

	// update
	resp, body = doJSON(t, http.MethodPut, srv.URL+"/rooms/"+created.ID, token, map[string]any{
		"name": "renamed lobby",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated room.Data
	require.NoError(t, json.Unmarshal(body, &updated))
	require.Equal(t, "renamed lobby", updated.Name)

	// invalid enum on update is rejected without touching the room
	resp, _ = doJSON(t, http.MethodPut, srv.URL+"/rooms/"+created.ID, token, map[string]any{
		"bot_mode": "NotAMode",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "renamed lobby", m.Get(created.ID).Snapshot().Name)

	// delete
	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/rooms/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, m.Get(created.ID))

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/rooms/"+created.ID, token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRooms_CreateRejectsUnknownEnum(t *testing.T) {
	srv, _ := newTestServer(t)
	token := loginToken(t, srv)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/rooms", token, map[string]any{
		"name":     "x",
		"bot_mode": "SpectatorMode",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEnums_ListsVocabulary(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/enums", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var enums map[string][]string
	require.NoError(t, json.Unmarshal(body, &enums))
	require.Contains(t, enums["BOT_MODE"], "AutoHost")
	require.Contains(t, enums["TEAM_MODE"], "HeadToHead")
	require.Contains(t, enums["RANK_STATUS"], "Ranked")
}

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/checkers-match-backend/internal/engine"
	"github.com/DoyleJ11/checkers-match-backend/internal/hub"
	"github.com/DoyleJ11/checkers-match-backend/internal/room"
	"github.com/DoyleJ11/checkers-match-backend/internal/stats"
	"github.com/DoyleJ11/checkers-match-backend/internal/ws"
)

type fakeStore struct {
	users     map[int64]*stats.User
	saved     []stats.StatInput
	failSave  error
	failBoard error
	limit     int
}

func (f *fakeStore) Profile(_ context.Context, id int64) (*stats.User, error) {
	return f.users[id], nil
}

func (f *fakeStore) SaveStat(_ context.Context, in stats.StatInput) (bool, error) {
	if !stats.ValidCategory(in.Category) {
		return false, stats.ErrUnknownCategory
	}
	if f.failSave != nil {
		return false, f.failSave
	}
	f.saved = append(f.saved, in)
	return true, nil
}

func (f *fakeStore) Leaderboard(_ context.Context, category string, limit int) ([]stats.Entry, error) {
	f.limit = limit
	if f.failBoard != nil {
		return nil, f.failBoard
	}
	return []stats.Entry{{UserID: 1, Username: "ann", PhotoURL: "p.png", Score: 42}}, nil
}

func newRouter(t *testing.T, store stats.Store) (http.Handler, *hub.Hub) {
	t.Helper()
	conns := ws.NewConnections(8, nil)
	h := hub.NewHub(context.Background(), hub.Config{Rooms: room.Config{Outbox: conns}})
	t.Cleanup(func() { _ = h.Shutdown(context.Background()) })
	return SetupRoutes(Deps{
		Hub:              h,
		Gateway:          ws.NewGateway(h, conns, nil, nil),
		Stats:            store,
		LeaderboardLimit: 25,
	}), h
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRootAndHealthz(t *testing.T) {
	r, h := newRouter(t, nil)

	rec := do(t, r, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, banner, rec.Body.String())

	_, _, err := h.Create(context.Background(), engine.Player{ConnID: "A"})
	require.NoError(t, err)

	rec = do(t, r, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status string `json:"status"`
		Rooms  int    `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 1, body.Rooms)
}

func TestStatsRoutes_NotMountedWithoutStore(t *testing.T) {
	r, _ := newRouter(t, nil)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/leaderboard?category=tower_best", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/api/profile/1", "").Code)
}

func TestProfile(t *testing.T) {
	best := 9.0
	store := &fakeStore{users: map[int64]*stats.User{5: {TelegramID: 5, Username: "bo", TowerBest: &best}}}
	r, _ := newRouter(t, store)

	rec := do(t, r, http.MethodGet, "/api/profile/5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var u map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	assert.Equal(t, "bo", u["username"])
	assert.Equal(t, 9.0, u["tower_best"])
	assert.Nil(t, u["saper_total"])

	for _, path := range []string{"/api/profile/6", "/api/profile/nope"} {
		rec = do(t, r, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{}`, rec.Body.String())
	}
}

func TestSaveStat(t *testing.T) {
	store := &fakeStore{}
	r, _ := newRouter(t, store)

	rec := do(t, r, http.MethodPost, "/save-stat",
		`{"user_id":77,"username":"cy","photo_url":"c.png","game_type":"checkers_wins_pve","score":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	require.Len(t, store.saved, 1)
	assert.Equal(t, stats.StatInput{UserID: 77, Username: "cy", PhotoURL: "c.png", Category: "checkers_wins_pve", Score: 3}, store.saved[0])

	rec = do(t, r, http.MethodPost, "/save-stat", `{"user_id":77,"game_type":"username","score":3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPost, "/save-stat", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	store.failSave = errors.New("db down")
	rec = do(t, r, http.MethodPost, "/save-stat", `{"user_id":1,"game_type":"tower_best","score":1}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"db down"}`, rec.Body.String())
}

func TestSaveStat_Preflight(t *testing.T) {
	r, _ := newRouter(t, &fakeStore{})
	rec := do(t, r, http.MethodOptions, "/save-stat", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLeaderboard(t *testing.T) {
	store := &fakeStore{}
	r, _ := newRouter(t, store)

	rec := do(t, r, http.MethodGet, "/leaderboard?category=tower_best", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"user_id":1,"username":"ann","photo_url":"p.png","score":42}]`, rec.Body.String())
	assert.Equal(t, 25, store.limit)

	rec = do(t, r, http.MethodGet, "/leaderboard?category=photo_url", "")
	assert.JSONEq(t, `[]`, rec.Body.String())

	store.failBoard = errors.New("timeout")
	rec = do(t, r, http.MethodGet, "/leaderboard?category=tower_best", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

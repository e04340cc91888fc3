package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/checkers-match-backend/internal/hub"
	"github.com/DoyleJ11/checkers-match-backend/internal/stats"
	"github.com/DoyleJ11/checkers-match-backend/internal/ws"
)

const banner = "Checkers match server"

func Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(banner))
}

func Healthz(h *hub.Hub, conns *ws.Connections) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, err := h.Count(r.Context())
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Status      string `json:"status"`
			Rooms       int    `json:"rooms"`
			Connections int    `json:"connections"`
		}{Status: "ok", Rooms: rooms, Connections: conns.Count()})
	}
}

// Profile answers {} for unknown users and on lookup errors.
func Profile(store stats.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusOK, struct{}{})
			return
		}
		u, err := store.Profile(r.Context(), id)
		if err != nil {
			log.Warn("profile_failed", zap.Int64("user_id", id), zap.Error(err))
		}
		if err != nil || u == nil {
			writeJSON(w, http.StatusOK, struct{}{})
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

type saveStatRequest struct {
	UserID   int64   `json:"user_id"`
	Username string  `json:"username"`
	PhotoURL string  `json:"photo_url"`
	GameType string  `json:"game_type"`
	Score    float64 `json:"score"`
}

func SaveStat(store stats.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req saveStatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad json"})
			return
		}

		record, err := store.SaveStat(r.Context(), stats.StatInput{
			UserID:   req.UserID,
			Username: req.Username,
			PhotoURL: req.PhotoURL,
			Category: req.GameType,
			Score:    req.Score,
		})
		switch {
		case errors.Is(err, stats.ErrUnknownCategory):
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		case err != nil:
			log.Error("save_stat_failed", zap.Int64("user_id", req.UserID), zap.String("game_type", req.GameType), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
			return
		}

		log.Debug("stat_saved", zap.Int64("user_id", req.UserID), zap.String("game_type", req.GameType), zap.Bool("record", record))
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// Leaderboard answers [] for unknown categories and on store errors.
func Leaderboard(store stats.Store, limit int, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category := r.URL.Query().Get("category")
		if !stats.ValidCategory(category) {
			writeJSON(w, http.StatusOK, []stats.Entry{})
			return
		}
		rows, err := store.Leaderboard(r.Context(), category, limit)
		if err != nil {
			log.Warn("leaderboard_failed", zap.String("category", category), zap.Error(err))
			rows = []stats.Entry{}
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

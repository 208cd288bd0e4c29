// Package httpapi is the thin administration surface over the room manager:
// session login, room CRUD, and connection control.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/astrolabio1417/legacy-osu-bot/internal/beatmap"
	"github.com/astrolabio1417/legacy-osu-bot/internal/manager"
	"github.com/astrolabio1417/legacy-osu-bot/internal/osu"
	"github.com/astrolabio1417/legacy-osu-bot/internal/room"
)

type API struct {
	manager  *manager.Manager
	provider beatmap.Provider
	auth     *Auth
	log      *zap.SugaredLogger
}

func NewAPI(m *manager.Manager, provider beatmap.Provider, auth *Auth, log *zap.SugaredLogger) *API {
	return &API{manager: m, provider: provider, auth: auth, log: log}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"status": status, "message": message})
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Message      string `json:"message,omitempty"`
	Token        string `json:"token,omitempty"`
	Username     string `json:"username"`
	IsAdmin      bool   `json:"is_admin"`
	IsIRCRunning bool   `json:"is_irc_running"`
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	token, err := a.auth.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Message:      "logged in",
		Token:        token,
		Username:     req.Username,
		IsAdmin:      true,
		IsIRCRunning: a.manager.Started(),
	})
}

func (a *API) session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionResponse{
		Username:     sessionUsername(r),
		IsAdmin:      true,
		IsIRCRunning: a.manager.Started(),
	})
}

func (a *API) enums(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{
		"BOT_MODE":         osu.BotModes(),
		"PLAY_MODE":        osu.PlayModes(),
		"TEAM_MODE":        osu.TeamModes(),
		"SCORE_MODE":       osu.ScoreModes(),
		"RANK_STATUS":      osu.RankStatuses(),
		"BEATMAP_GENRE":    osu.Genres(),
		"BEATMAP_LANGUAGE": osu.Languages(),
	})
}

// roomPayload is the create-room body: room attributes plus the nested
// beatmap filter set. Missing enum names fall back to lobby defaults.
type roomPayload struct {
	Name      string                `json:"name"`
	Password  string                `json:"password"`
	BotMode   string                `json:"bot_mode"`
	PlayMode  string                `json:"play_mode"`
	TeamMode  string                `json:"team_mode"`
	ScoreMode string                `json:"score_mode"`
	RoomSize  int                   `json:"room_size"`
	Beatmap   *beatmap.FilterUpdate `json:"beatmap"`
}

func (p roomPayload) toConfig() (room.Config, error) {
	cfg := room.Config{
		Name:     p.Name,
		Password: p.Password,
		BotMode:  osu.AutoHost,
		Size:     p.RoomSize,
	}

	var err error
	if p.BotMode != "" {
		if cfg.BotMode, err = osu.ParseBotMode(p.BotMode); err != nil {
			return cfg, err
		}
	}
	if p.PlayMode != "" {
		if cfg.PlayMode, err = osu.ParsePlayMode(p.PlayMode); err != nil {
			return cfg, err
		}
	}
	if p.TeamMode != "" {
		if cfg.TeamMode, err = osu.ParseTeamMode(p.TeamMode); err != nil {
			return cfg, err
		}
	}
	if p.ScoreMode != "" {
		if cfg.ScoreMode, err = osu.ParseScoreMode(p.ScoreMode); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func (a *API) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms := a.manager.List()
	out := make([]room.Data, 0, len(rooms))
	for _, rm := range rooms {
		out = append(out, rm.Snapshot())
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) createRoom(w http.ResponseWriter, r *http.Request) {
	var payload roomPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if payload.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	cfg, err := payload.toConfig()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	selector := beatmap.NewSelector(a.provider, beatmap.DefaultFilters(), a.log)
	if payload.Beatmap != nil {
		if err := selector.Configure(*payload.Beatmap); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	newRoom, err := room.New(a.manager.Conn(), selector, a.provider, cfg, a.log)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	a.manager.Add(newRoom)
	newRoom.Create()
	a.log.Infow("room created", "id", newRoom.ID(), "name", cfg.Name)

	writeJSON(w, http.StatusCreated, newRoom.Snapshot())
}

func (a *API) getRoom(w http.ResponseWriter, r *http.Request, id string) {
	rm := a.manager.Get(id)
	if rm == nil {
		writeError(w, http.StatusNotFound, "no room found")
		return
	}
	writeJSON(w, http.StatusOK, rm.Snapshot())
}

func (a *API) updateRoom(w http.ResponseWriter, r *http.Request, id string) {
	rm := a.manager.Get(id)
	if rm == nil {
		writeError(w, http.StatusNotFound, "no room found")
		return
	}

	var update room.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	if err := rm.Configure(update); err != nil {
		if errors.Is(err, osu.ErrUnknownBotMode) || errors.Is(err, osu.ErrUnknownPlayMode) ||
			errors.Is(err, osu.ErrUnknownTeamMode) || errors.Is(err, osu.ErrUnknownScoreMode) ||
			errors.Is(err, osu.ErrUnknownRankStatus) || errors.Is(err, osu.ErrUnknownGenre) ||
			errors.Is(err, osu.ErrUnknownLanguage) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, rm.Snapshot())
}

func (a *API) deleteRoom(w http.ResponseWriter, r *http.Request, id string) {
	rm := a.manager.Get(id)
	if rm == nil {
		writeError(w, http.StatusNotFound, "no room found")
		return
	}

	rm.SendClose()
	a.manager.Remove(id)
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (a *API) startIRC(w http.ResponseWriter, r *http.Request) {
	if a.manager.Started() {
		writeError(w, http.StatusConflict, "already running")
		return
	}
	a.manager.Start(true)
	a.manager.CreateAll()
	writeJSON(w, http.StatusOK, map[string]bool{"running": true})
}

func (a *API) stopIRC(w http.ResponseWriter, r *http.Request) {
	a.manager.Stop()
	writeJSON(w, http.StatusOK, map[string]bool{"running": false})
}

package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	apperrors "github.com/meridianchat/presenced/internal/errors"
	"github.com/meridianchat/presenced/internal/models"
	"github.com/meridianchat/presenced/internal/presence"
)

// PresenceHandler handles the presence status and presence list endpoints.
type PresenceHandler struct {
	engine *presence.Engine
	auth   Authenticator
}

// NewPresenceHandler creates a new PresenceHandler.
func NewPresenceHandler(engine *presence.Engine, auth Authenticator) *PresenceHandler {
	return &PresenceHandler{engine: engine, auth: auth}
}

// Register attaches all presence routes to the mux.
func (h *PresenceHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("PUT /presence/{user_id}/status", h.PutStatus)
	mux.HandleFunc("POST /presence/list/{user_id}", h.PostList)
	// GET /presence/{user_id}/status and GET /presence/list/{user_id} are
	// ambiguous to ServeMux (neither is more specific), so it panics if both
	// are registered. Dispatch the two GET routes from a single pattern.
	mux.HandleFunc("GET /presence/{first}/{second}", func(w http.ResponseWriter, r *http.Request) {
		first, second := r.PathValue("first"), r.PathValue("second")
		switch {
		case first == "list":
			r.SetPathValue("user_id", second)
			h.GetList(w, r)
		case second == "status":
			r.SetPathValue("user_id", first)
			h.GetStatus(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// PutStatus handles PUT /presence/{user_id}/status.
// Callers may only set their own presence.
func (h *PresenceHandler) PutStatus(w http.ResponseWriter, r *http.Request) {
	caller, err := h.auth.UserFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	userID := r.PathValue("user_id")
	if userID != caller {
		writeError(w, apperrors.New(apperrors.ErrForbidden,
			"the given user_id does not correspond to the authenticated user"))
		return
	}

	var request struct {
		Presence  models.PresenceState `json:"presence"`
		StatusMsg string               `json:"status_msg"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrInvalid, "invalid request body", err))
		return
	}
	if request.Presence == "" {
		writeError(w, apperrors.New(apperrors.ErrInvalid, "presence is required"))
		return
	}

	if err := h.engine.UpsertStatus(r.Context(), userID, request.Presence, request.StatusMsg); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, struct{}{})
}

// GetStatus handles GET /presence/{user_id}/status.
func (h *PresenceHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.UserFromRequest(r); err != nil {
		writeError(w, err)
		return
	}

	status, err := h.engine.Status(r.Context(), r.PathValue("user_id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, status)
}

// PostList handles POST /presence/list/{user_id}.
// Callers may only modify their own presence list.
func (h *PresenceHandler) PostList(w http.ResponseWriter, r *http.Request) {
	caller, err := h.auth.UserFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	userID := r.PathValue("user_id")
	if userID != caller {
		writeError(w, apperrors.New(apperrors.ErrForbidden,
			"the given user_id does not correspond to the authenticated user"))
		return
	}

	var request struct {
		Invite []string `json:"invite"`
		Drop   []string `json:"drop"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrInvalid, "invalid request body", err))
		return
	}

	if err := h.engine.UpdateList(r.Context(), userID, request.Invite, request.Drop); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, struct{}{})
}

// GetList handles GET /presence/list/{user_id}.
// Callers may only read their own presence list. The optional since query
// parameter is an ordering cursor; only transitions newer than it are
// returned. The optional timeout parameter overrides the staleness window
// in milliseconds.
func (h *PresenceHandler) GetList(w http.ResponseWriter, r *http.Request) {
	caller, err := h.auth.UserFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	userID := r.PathValue("user_id")
	if userID != caller {
		writeError(w, apperrors.New(apperrors.ErrForbidden,
			"the given user_id does not correspond to the authenticated user"))
		return
	}

	since := presence.NoCursor
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, apperrors.Wrap(apperrors.ErrInvalid, "since must be an integer", err))
			return
		}
	}

	var timeoutMS int64
	if raw := r.URL.Query().Get("timeout"); raw != "" {
		timeoutMS, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, apperrors.Wrap(apperrors.ErrInvalid, "timeout must be an integer", err))
			return
		}
	}

	_, events, err := h.engine.Sync(r.Context(), userID, since, timeoutMS)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, events)
}

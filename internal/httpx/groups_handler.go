package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/little-lemon/internal/apperr"
	"github.com/ariefcatur/little-lemon/internal/users"
)

// GroupsHandler manages membership of the Manager and Delivery crew groups.
type GroupsHandler struct {
	Users UserStore
	Roles RoleInvalidator
	Log   *zap.Logger
}

func (h *GroupsHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(requireManager(h.Log))
		for slug, group := range users.GroupBySlug {
			base := "/groups/" + slug + "/users"
			r.Get(base, h.members(group))
			r.Post(base, h.add(group))
			r.Delete(base+"/{id}", h.remove(group))
		}
	})
}

func (h *GroupsHandler) members(group string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
		defer cancel()
		list, err := h.Users.ListMembers(ctx, group)
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func (h *GroupsHandler) add(group string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		username := strings.TrimSpace(req.Username)
		if username == "" {
			fe := apperr.FieldErrors{}
			fe.Add("username", "This field is required.")
			writeError(w, r, h.Log, fe.Err())
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
		defer cancel()
		u, err := h.Users.GetUserByUsername(ctx, username)
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		if err := h.Users.AddToGroup(ctx, u.ID, group); err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		h.invalidate(ctx, u.ID)
		h.Log.Info("group member added", zap.String("group", group), zap.Int64("user_id", u.ID))
		writeJSON(w, http.StatusOK, okBody)
	}
}

func (h *GroupsHandler) remove(group string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := pathID(r)
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
		defer cancel()
		if _, err := h.Users.GetUser(ctx, userID); err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		if err := h.Users.RemoveFromGroup(ctx, userID, group); err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		h.invalidate(ctx, userID)
		h.Log.Info("group member removed", zap.String("group", group), zap.Int64("user_id", userID))
		writeJSON(w, http.StatusOK, okBody)
	}
}

// invalidate drops the cached role set. A stale entry expires on its own,
// so failures are only logged.
func (h *GroupsHandler) invalidate(ctx context.Context, userID int64) {
	if err := h.Roles.Invalidate(ctx, userID); err != nil {
		h.Log.Warn("role cache invalidation failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/little-lemon/internal/apperr"
	"github.com/ariefcatur/little-lemon/internal/auth"
	"github.com/ariefcatur/little-lemon/internal/users"
)

type AccountsHandler struct {
	Users UserStore
	Log   *zap.Logger
}

// RegisterPublic mounts the routes reachable without a token.
func (h *AccountsHandler) RegisterPublic(r chi.Router) {
	r.Post("/auth/users", h.register)
	r.Post("/auth/token/login", h.login)
}

func (h *AccountsHandler) Register(r chi.Router) {
	r.Post("/auth/token/logout", h.logout)
	r.Get("/auth/users/me", h.me)
}

func (h *AccountsHandler) register(w http.ResponseWriter, r *http.Request) {
	var n users.NewUser
	if err := decodeJSON(r, &n); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	n.Normalize()
	if err := n.Validate(); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()
	u, err := h.Users.CreateUser(ctx, n)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.Log.Info("user registered", zap.Int64("user_id", u.ID), zap.String("username", u.Username))
	writeJSON(w, http.StatusCreated, u)
}

var errBadCredentials = apperr.Validation("Unable to log in with provided credentials.")

func (h *AccountsHandler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	fe := apperr.FieldErrors{}
	if req.Username == "" {
		fe.Add("username", "This field is required.")
	}
	if req.Password == "" {
		fe.Add("password", "This field is required.")
	}
	if err := fe.Err(); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()
	u, hash, err := h.Users.Credentials(ctx, req.Username)
	if apperr.Is(err, apperr.KindNotFound) {
		writeError(w, r, h.Log, errBadCredentials)
		return
	}
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if !auth.CheckPassword(hash, req.Password) {
		writeError(w, r, h.Log, errBadCredentials)
		return
	}

	key, err := auth.NewToken()
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	key, err = h.Users.IssueToken(ctx, u.ID, key)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"auth_token": key})
}

func (h *AccountsHandler) logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()
	if err := h.Users.DeleteToken(ctx, tokenFromContext(r.Context())); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AccountsHandler) me(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()
	u, err := h.Users.GetUser(ctx, id.UserID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

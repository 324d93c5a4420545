package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/aleks8/blog-list/internal/auth"
	"github.com/aleks8/blog-list/internal/models"
)

type CredentialStore interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

type LoginHandler struct {
	store  CredentialStore
	tokens *auth.Tokens
	log    *zap.Logger
}

func NewLoginHandler(store CredentialStore, tokens *auth.Tokens, log *zap.Logger) *LoginHandler {
	return &LoginHandler{store: store, tokens: tokens, log: log}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// Login checks the password against the stored bcrypt hash and returns a bearer token.
func (h *LoginHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username and password required")
		return
	}
	user, err := h.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		respondStoreError(w, h.log, err, "db error")
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		respondError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token, err := h.tokens.Issue(*user)
	if err != nil {
		h.log.Error("issue token", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "token error")
		return
	}
	respondJSON(w, http.StatusOK, LoginResponse{Token: token, Username: user.Username, Name: user.Name})
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/aleks8/blog-list/internal/auth"
	"github.com/aleks8/blog-list/internal/db"
	"github.com/aleks8/blog-list/internal/models"
)

type UserStore interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
}

type UsersHandler struct {
	store      UserStore
	log        *zap.Logger
	bcryptCost int
}

func NewUsersHandler(store UserStore, log *zap.Logger, bcryptCost int) *UsersHandler {
	return &UsersHandler{store: store, log: log, bcryptCost: bcryptCost}
}

type CreateUserRequest struct {
	Username string `json:"username" validate:"required"`
	Name     string `json:"name"`
	Password string `json:"password" validate:"required,min=3"`
}

func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		respondStoreError(w, h.log, err, "failed to load users")
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// Create registers a user. Username uniqueness is left to the store's constraint.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	hash, err := auth.HashPassword(req.Password, h.bcryptCost)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			respondError(w, http.StatusBadRequest, "password too long")
			return
		}
		h.log.Error("hash password", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	created, err := h.store.CreateUser(r.Context(), models.User{
		Username:     req.Username,
		Name:         req.Name,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, db.ErrDuplicateUsername) {
			respondError(w, http.StatusBadRequest, db.ErrDuplicateUsername.Error())
			return
		}
		respondStoreError(w, h.log, err, "failed to create user")
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/aleks8/blog-list/internal/middleware"
	"github.com/aleks8/blog-list/internal/models"
)

type BlogStore interface {
	ListBlogs(ctx context.Context) ([]models.Blog, error)
	GetBlog(ctx context.Context, id string) (*models.Blog, error)
	CreateBlog(ctx context.Context, blog models.Blog) (*models.Blog, error)
	UpdateBlog(ctx context.Context, blog models.Blog) (*models.Blog, error)
	DeleteBlog(ctx context.Context, id string) error
}

type BlogsHandler struct {
	store BlogStore
	log   *zap.Logger
}

func NewBlogsHandler(store BlogStore, log *zap.Logger) *BlogsHandler {
	return &BlogsHandler{store: store, log: log}
}

type blogInput struct {
	Title  string `json:"title" validate:"required"`
	Author string `json:"author"`
	URL    string `json:"url" validate:"required"`
	Likes  int    `json:"likes" validate:"gte=0,lte=2147483647"`
}

func (in *blogInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.URL = strings.TrimSpace(in.URL)
}

// blogPatch holds the fields of a PUT body. Absent fields keep their stored value.
type blogPatch struct {
	Title  *string `json:"title"`
	Author *string `json:"author"`
	URL    *string `json:"url"`
	Likes  *int    `json:"likes"`
}

func (p blogPatch) applyTo(blog models.Blog) blogInput {
	in := blogInput{Title: blog.Title, Author: blog.Author, URL: blog.URL, Likes: blog.Likes}
	if p.Title != nil {
		in.Title = *p.Title
	}
	if p.Author != nil {
		in.Author = *p.Author
	}
	if p.URL != nil {
		in.URL = *p.URL
	}
	if p.Likes != nil {
		in.Likes = *p.Likes
	}
	in.normalize()
	return in
}

func (h *BlogsHandler) List(w http.ResponseWriter, r *http.Request) {
	blogs, err := h.store.ListBlogs(r.Context())
	if err != nil {
		respondStoreError(w, h.log, err, "failed to load blogs")
		return
	}
	respondJSON(w, http.StatusOK, blogs)
}

func (h *BlogsHandler) Get(w http.ResponseWriter, r *http.Request) {
	blog, err := h.store.GetBlog(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, h.log, err, "failed to load blog")
		return
	}
	if blog == nil {
		respondError(w, http.StatusNotFound, "blog not found")
		return
	}
	respondJSON(w, http.StatusOK, blog)
}

// Create needs RequireUser in front of it; the blog is attributed to the token's user.
func (h *BlogsHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "token missing")
		return
	}
	var in blogInput
	if !decodeJSON(w, r, &in) {
		return
	}
	in.normalize()
	if err := validate.Struct(in); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	created, err := h.store.CreateBlog(r.Context(), models.Blog{
		Title:  in.Title,
		Author: in.Author,
		URL:    in.URL,
		Likes:  in.Likes,
		User:   user.ID,
	})
	if err != nil {
		respondStoreError(w, h.log, err, "failed to create blog")
		return
	}
	h.log.Debug("blog created", zap.String("id", created.ID), zap.String("user", user.ID))
	respondJSON(w, http.StatusCreated, created)
}

func (h *BlogsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch blogPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	existing, err := h.store.GetBlog(r.Context(), id)
	if err != nil {
		respondStoreError(w, h.log, err, "failed to load blog")
		return
	}
	if existing == nil {
		respondError(w, http.StatusNotFound, "blog not found")
		return
	}

	in := patch.applyTo(*existing)
	if err := validate.Struct(in); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	updated, err := h.store.UpdateBlog(r.Context(), models.Blog{
		ID:     id,
		Title:  in.Title,
		Author: in.Author,
		URL:    in.URL,
		Likes:  in.Likes,
	})
	if err != nil {
		respondStoreError(w, h.log, err, "failed to update blog")
		return
	}
	if updated == nil {
		respondError(w, http.StatusNotFound, "blog not found")
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// Delete answers 204 whether or not the blog existed.
func (h *BlogsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteBlog(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondStoreError(w, h.log, err, "failed to delete blog")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

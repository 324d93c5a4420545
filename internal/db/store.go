// Package db holds the persistence backends for blogs and users.
package db

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/aleks8/blog-list/internal/models"
)

var (
	// ErrInvalidID is returned when an id does not parse in the backend's id format.
	ErrInvalidID = errors.New("malformatted id")
	// ErrDuplicateUsername is returned by CreateUser when the username is taken.
	ErrDuplicateUsername = errors.New("expected `username` to be unique")
)

// Store is implemented by every backend. Lookups return nil, nil when the
// record does not exist.
type Store interface {
	ListBlogs(ctx context.Context) ([]models.Blog, error)
	GetBlog(ctx context.Context, id string) (*models.Blog, error)
	CreateBlog(ctx context.Context, blog models.Blog) (*models.Blog, error)
	UpdateBlog(ctx context.Context, blog models.Blog) (*models.Blog, error)
	DeleteBlog(ctx context.Context, id string) error

	ListUsers(ctx context.Context) ([]models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, user models.User) (*models.User, error)

	Reset(ctx context.Context) error
	Ping(ctx context.Context) error
	Close()
}

// Open picks a backend from the URL scheme. Anything that is not a postgres
// or mongodb URL is treated as a SQLite path.
func Open(ctx context.Context, databaseURL string) (Store, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return NewPostgresStore(ctx, databaseURL)
	case strings.HasPrefix(databaseURL, "mongodb://"), strings.HasPrefix(databaseURL, "mongodb+srv://"):
		return NewMongoStore(ctx, databaseURL)
	default:
		return NewSQLiteStore(ctx, strings.TrimPrefix(databaseURL, "sqlite://"))
	}
}

// uuidID returns the canonical lowercase form of a UUID id. Uppercase,
// braced, urn:uuid: and dash-less spellings resolve to the stored form.
func uuidID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", ErrInvalidID
	}
	return parsed.String(), nil
}

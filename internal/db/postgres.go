package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aleks8/blog-list/internal/models"
)

const pgUniqueViolation = "23505"

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
	    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	    username TEXT NOT NULL UNIQUE,
	    name TEXT NOT NULL DEFAULT '',
	    password_hash TEXT NOT NULL,
	    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE TABLE IF NOT EXISTS blogs (
	    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	    title TEXT NOT NULL,
	    author TEXT NOT NULL DEFAULT '',
	    url TEXT NOT NULL,
	    likes INTEGER NOT NULL DEFAULT 0 CHECK (likes >= 0),
	    user_id UUID REFERENCES users(id) ON DELETE SET NULL,
	    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_blogs_user_id ON blogs(user_id);`,
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 20
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) ListBlogs(ctx context.Context) ([]models.Blog, error) {
	const query = `
		SELECT id::text, title, author, url, likes, COALESCE(user_id::text, '')
		FROM blogs
		ORDER BY created_at, id
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list blogs: %w", err)
	}
	defer rows.Close()

	blogs := make([]models.Blog, 0)
	for rows.Next() {
		var blog models.Blog
		if err := rows.Scan(&blog.ID, &blog.Title, &blog.Author, &blog.URL, &blog.Likes, &blog.User); err != nil {
			return nil, fmt.Errorf("scan blog: %w", err)
		}
		blogs = append(blogs, blog)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return blogs, nil
}

func (s *PostgresStore) GetBlog(ctx context.Context, id string) (*models.Blog, error) {
	id, err := uuidID(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	const query = `
		SELECT id::text, title, author, url, likes, COALESCE(user_id::text, '')
		FROM blogs
		WHERE id = $1
	`
	var blog models.Blog
	err = s.pool.QueryRow(ctx, query, id).Scan(&blog.ID, &blog.Title, &blog.Author, &blog.URL, &blog.Likes, &blog.User)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get blog: %w", err)
	}
	return &blog, nil
}

func (s *PostgresStore) CreateBlog(ctx context.Context, blog models.Blog) (*models.Blog, error) {
	if blog.User != "" {
		userID, err := uuidID(blog.User)
		if err != nil {
			return nil, ErrInvalidID
		}
		blog.User = userID
	}
	const query = `
		INSERT INTO blogs (title, author, url, likes, user_id)
		VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid)
		RETURNING id::text, title, author, url, likes, COALESCE(user_id::text, '')
	`
	var created models.Blog
	err := s.pool.QueryRow(ctx, query, blog.Title, blog.Author, blog.URL, blog.Likes, blog.User).Scan(
		&created.ID,
		&created.Title,
		&created.Author,
		&created.URL,
		&created.Likes,
		&created.User,
	)
	if err != nil {
		return nil, fmt.Errorf("create blog: %w", err)
	}
	return &created, nil
}

func (s *PostgresStore) UpdateBlog(ctx context.Context, blog models.Blog) (*models.Blog, error) {
	id, err := uuidID(blog.ID)
	if err != nil {
		return nil, ErrInvalidID
	}
	blog.ID = id
	const query = `
		UPDATE blogs
		SET title = $2, author = $3, url = $4, likes = $5
		WHERE id = $1
		RETURNING id::text, title, author, url, likes, COALESCE(user_id::text, '')
	`
	var updated models.Blog
	err = s.pool.QueryRow(ctx, query, blog.ID, blog.Title, blog.Author, blog.URL, blog.Likes).Scan(
		&updated.ID,
		&updated.Title,
		&updated.Author,
		&updated.URL,
		&updated.Likes,
		&updated.User,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update blog: %w", err)
	}
	return &updated, nil
}

func (s *PostgresStore) DeleteBlog(ctx context.Context, id string) error {
	id, err := uuidID(id)
	if err != nil {
		return ErrInvalidID
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM blogs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete blog: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]models.User, error) {
	const query = `
		SELECT
			u.id::text,
			u.username,
			u.name,
			COALESCE(array_agg(b.id::text ORDER BY b.created_at) FILTER (WHERE b.id IS NOT NULL), '{}'::text[])
		FROM users u
		LEFT JOIN blogs b ON b.user_id = u.id
		GROUP BY u.id
		ORDER BY u.created_at
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username, &user.Name, &user.Blogs); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return users, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	const query = `
		INSERT INTO users (username, name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id::text, username, name, password_hash
	`
	created := models.User{Blogs: []string{}}
	err := s.pool.QueryRow(ctx, query, user.Username, user.Name, user.PasswordHash).Scan(
		&created.ID,
		&created.Username,
		&created.Name,
		&created.PasswordHash,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &created, nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	const query = `
		SELECT id::text, username, name, password_hash
		FROM users
		WHERE username = $1
	`
	return s.getUser(ctx, query, username)
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	id, err := uuidID(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	const query = `
		SELECT id::text, username, name, password_hash
		FROM users
		WHERE id = $1
	`
	return s.getUser(ctx, query, id)
}

func (s *PostgresStore) getUser(ctx context.Context, query string, arg string) (*models.User, error) {
	user := models.User{Blogs: []string{}}
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.Name,
		&user.PasswordHash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

func (s *PostgresStore) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE blogs, users`); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

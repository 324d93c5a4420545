package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/aleks8/blog-list/internal/models"
)

var sqliteSchema = []string{
	`PRAGMA foreign_keys = ON;`,
	`CREATE TABLE IF NOT EXISTS users(
		id TEXT PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS blogs(
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL,
		likes INTEGER NOT NULL DEFAULT 0 CHECK(likes >= 0),
		user_id TEXT REFERENCES users(id) ON DELETE SET NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE INDEX IF NOT EXISTS idx_blogs_user_id ON blogs(user_id);`,
}

// SQLiteStore keeps everything in one SQLite file. It is what the test suite runs against.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps the foreign_keys pragma in effect and serializes writers.
	conn.SetMaxOpenConns(1)
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	for _, stmt := range sqliteSchema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return &SQLiteStore{db: conn}, nil
}

func (s *SQLiteStore) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) ListBlogs(ctx context.Context) ([]models.Blog, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, author, url, likes, user_id FROM blogs ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list blogs: %w", err)
	}
	defer rows.Close()

	blogs := make([]models.Blog, 0)
	for rows.Next() {
		blog, err := scanBlog(rows)
		if err != nil {
			return nil, err
		}
		blogs = append(blogs, *blog)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return blogs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlog(row rowScanner) (*models.Blog, error) {
	var blog models.Blog
	var userID sql.NullString
	if err := row.Scan(&blog.ID, &blog.Title, &blog.Author, &blog.URL, &blog.Likes, &userID); err != nil {
		return nil, err
	}
	blog.User = userID.String
	return &blog, nil
}

func (s *SQLiteStore) GetBlog(ctx context.Context, id string) (*models.Blog, error) {
	id, err := uuidID(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	row := s.db.QueryRowContext(ctx, `SELECT id, title, author, url, likes, user_id FROM blogs WHERE id = ?`, id)
	blog, err := scanBlog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get blog: %w", err)
	}
	return blog, nil
}

func (s *SQLiteStore) CreateBlog(ctx context.Context, blog models.Blog) (*models.Blog, error) {
	var userID sql.NullString
	if blog.User != "" {
		id, err := uuidID(blog.User)
		if err != nil {
			return nil, ErrInvalidID
		}
		blog.User = id
		userID = sql.NullString{String: id, Valid: true}
	}
	blog.ID = uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blogs(id, title, author, url, likes, user_id) VALUES(?,?,?,?,?,?)`,
		blog.ID, blog.Title, blog.Author, blog.URL, blog.Likes, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("create blog: %w", err)
	}
	return &blog, nil
}

func (s *SQLiteStore) UpdateBlog(ctx context.Context, blog models.Blog) (*models.Blog, error) {
	id, err := uuidID(blog.ID)
	if err != nil {
		return nil, ErrInvalidID
	}
	blog.ID = id
	res, err := s.db.ExecContext(ctx,
		`UPDATE blogs SET title = ?, author = ?, url = ?, likes = ? WHERE id = ?`,
		blog.Title, blog.Author, blog.URL, blog.Likes, blog.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update blog: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update blog: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return s.GetBlog(ctx, blog.ID)
}

func (s *SQLiteStore) DeleteBlog(ctx context.Context, id string) error {
	id, err := uuidID(id)
	if err != nil {
		return ErrInvalidID
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM blogs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete blog: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, username, name FROM users ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]models.User, 0)
	index := make(map[string]int)
	for rows.Next() {
		user := models.User{Blogs: []string{}}
		if err := rows.Scan(&user.ID, &user.Username, &user.Name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan user: %w", err)
		}
		index[user.ID] = len(users)
		users = append(users, user)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	blogRows, err := s.db.QueryContext(ctx, `SELECT id, user_id FROM blogs WHERE user_id IS NOT NULL ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list user blogs: %w", err)
	}
	defer blogRows.Close()
	for blogRows.Next() {
		var blogID, userID string
		if err := blogRows.Scan(&blogID, &userID); err != nil {
			return nil, fmt.Errorf("scan user blog: %w", err)
		}
		if i, ok := index[userID]; ok {
			users[i].Blogs = append(users[i].Blogs, blogID)
		}
	}
	if err := blogRows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return users, nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	user.ID = uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(id, username, name, password_hash) VALUES(?,?,?,?)`,
		user.ID, user.Username, user.Name, user.PasswordHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	user.Blogs = []string{}
	return &user, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqliteErr.Error(), "UNIQUE"))
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	id, err := uuidID(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	return s.getUser(ctx, `SELECT id, username, name, password_hash FROM users WHERE id = ?`, id)
}

func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, `SELECT id, username, name, password_hash FROM users WHERE username = ?`, username)
}

func (s *SQLiteStore) getUser(ctx context.Context, query string, arg string) (*models.User, error) {
	user := models.User{Blogs: []string{}}
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&user.ID, &user.Username, &user.Name, &user.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) Reset(ctx context.Context) error {
	for _, stmt := range []string{`DELETE FROM blogs`, `DELETE FROM users`} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}
	return nil
}

package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/aleks8/blog-list/internal/config"
	"github.com/aleks8/blog-list/internal/db"
	"github.com/aleks8/blog-list/internal/models"
	"github.com/aleks8/blog-list/internal/server"
)

const (
	testSecret     = "test-secret"
	testResetToken = "reset-token"
)

var initialBlogs = []models.Blog{
	{
		Title:  "React patterns",
		Author: "Michael Chan",
		URL:    "https://reactpatterns.com/",
		Likes:  7,
	},
	{
		Title:  "Go To Statement Considered Harmful",
		Author: "Edsger W. Dijkstra",
		URL:    "http://www.u.arizona.edu/~rubinson/copyright_violations/Go_To_Considered_Harmful.html",
		Likes:  5,
	},
}

type testAPI struct {
	t     *testing.T
	store *db.SQLiteStore
	srv   *httptest.Server
}

func testConfig() config.Config {
	return config.Config{
		Env:                config.EnvTest,
		JWTSecret:          testSecret,
		TokenTTL:           time.Hour,
		AuthToken:          testResetToken,
		CorsAllowedOrigins: []string{"*"},
		LoginRateLimit:     1000,
		BcryptCost:         bcrypt.MinCost,
	}
}

func newTestAPI(t *testing.T, opts ...func(*config.Config)) *testAPI {
	t.Helper()
	store, err := db.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "bloglist.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	cfg := testConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	api := server.New(cfg, store, zap.NewNop())
	srv := httptest.NewServer(api)
	t.Cleanup(func() {
		srv.Close()
		api.Close()
		store.Close()
	})
	return &testAPI{t: t, store: store, srv: srv}
}

// seedBlogs resets the store and inserts initialBlogs.
func (a *testAPI) seedBlogs() {
	a.t.Helper()
	ctx := context.Background()
	if err := a.store.Reset(ctx); err != nil {
		a.t.Fatalf("reset: %v", err)
	}
	for _, blog := range initialBlogs {
		if _, err := a.store.CreateBlog(ctx, blog); err != nil {
			a.t.Fatalf("seed blog: %v", err)
		}
	}
}

func (a *testAPI) blogsInDb() []models.Blog {
	a.t.Helper()
	blogs, err := a.store.ListBlogs(context.Background())
	if err != nil {
		a.t.Fatalf("list blogs: %v", err)
	}
	return blogs
}

func (a *testAPI) usersInDb() []models.User {
	a.t.Helper()
	users, err := a.store.ListUsers(context.Background())
	if err != nil {
		a.t.Fatalf("list users: %v", err)
	}
	return users
}

// do sends body as JSON (a string is sent verbatim) and returns the response
// with its body already read.
func (a *testAPI) do(method, path string, body any, token string) (*http.Response, []byte) {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		if s, ok := body.(string); ok {
			reader = strings.NewReader(s)
		} else {
			buf, err := json.Marshal(body)
			if err != nil {
				a.t.Fatalf("marshal body: %v", err)
			}
			reader = bytes.NewReader(buf)
		}
	}
	req, err := http.NewRequest(method, a.srv.URL+path, reader)
	if err != nil {
		a.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.srv.Client().Do(req)
	if err != nil {
		a.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		a.t.Fatalf("read body: %v", err)
	}
	return resp, data
}

// login creates the user through the API (ignoring a duplicate) and returns a token.
func (a *testAPI) login(username, password string) string {
	a.t.Helper()
	creds := map[string]string{"username": username, "password": password}
	a.do(http.MethodPost, "/api/users", creds, "")
	resp, body := a.do(http.MethodPost, "/api/login", creds, "")
	expectStatus(a.t, resp, body, http.StatusOK)
	var out struct {
		Token string `json:"token"`
	}
	decode(a.t, body, &out)
	if out.Token == "" {
		a.t.Fatalf("login returned empty token: %s", body)
	}
	return out.Token
}

func expectStatus(t *testing.T, resp *http.Response, body []byte, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d (body %s)", want, resp.StatusCode, body)
	}
}

func expectJSON(t *testing.T, resp *http.Response) {
	t.Helper()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("expected application/json, got %q", ct)
	}
}

func decode(t *testing.T, body []byte, dst any) {
	t.Helper()
	if err := json.Unmarshal(body, dst); err != nil {
		t.Fatalf("invalid json %s: %v", body, err)
	}
}

func errorMessage(t *testing.T, body []byte) string {
	t.Helper()
	var m map[string]string
	decode(t, body, &m)
	return m["error"]
}

func titles(blogs []models.Blog) []string {
	out := make([]string, 0, len(blogs))
	for _, b := range blogs {
		out = append(out, b.Title)
	}
	return out
}

func contains(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}

package server_test

import (
	"net/http"
	"testing"

	"github.com/aleks8/blog-list/internal/config"
)

func TestLoginReturnsToken(t *testing.T) {
	api := withOneUser(t)

	resp, body := api.do(http.MethodPost, "/api/login", map[string]string{"username": "mluukkai", "password": "sekret"}, "")
	expectStatus(t, resp, body, http.StatusOK)
	expectJSON(t, resp)

	var out struct {
		Token    string `json:"token"`
		Username string `json:"username"`
	}
	decode(t, body, &out)
	if out.Token == "" || out.Username != "mluukkai" {
		t.Fatalf("unexpected login response %s", body)
	}
}

func TestLoginWithPaddedUsername(t *testing.T) {
	api := newTestAPI(t)
	creds := map[string]string{"username": " bob ", "password": "secret"}

	resp, body := api.do(http.MethodPost, "/api/users", creds, "")
	expectStatus(t, resp, body, http.StatusCreated)

	resp, body = api.do(http.MethodPost, "/api/login", creds, "")
	expectStatus(t, resp, body, http.StatusOK)

	var out struct {
		Username string `json:"username"`
	}
	decode(t, body, &out)
	if out.Username != "bob" {
		t.Fatalf("expected stored username %q, got %q", "bob", out.Username)
	}
}

func TestLoginFailures(t *testing.T) {
	api := withOneUser(t)

	tests := []struct {
		name   string
		creds  map[string]string
		status int
		want   string
	}{
		{"wrong password", map[string]string{"username": "mluukkai", "password": "wrong"}, http.StatusUnauthorized, "invalid username or password"},
		{"unknown user", map[string]string{"username": "nobody", "password": "sekret"}, http.StatusUnauthorized, "invalid username or password"},
		{"missing password", map[string]string{"username": "mluukkai"}, http.StatusBadRequest, "username and password required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := api.do(http.MethodPost, "/api/login", tt.creds, "")
			expectStatus(t, resp, body, tt.status)
			if msg := errorMessage(t, body); msg != tt.want {
				t.Errorf("expected %q, got %q", tt.want, msg)
			}
		})
	}
}

func TestLoginIsRateLimited(t *testing.T) {
	api := newTestAPI(t, func(c *config.Config) { c.LoginRateLimit = 2 })
	creds := map[string]string{"username": "nobody", "password": "nothing"}

	for i := 0; i < 2; i++ {
		resp, body := api.do(http.MethodPost, "/api/login", creds, "")
		expectStatus(t, resp, body, http.StatusUnauthorized)
	}
	resp, body := api.do(http.MethodPost, "/api/login", creds, "")
	expectStatus(t, resp, body, http.StatusTooManyRequests)
	expectJSON(t, resp)
}

func TestTestingReset(t *testing.T) {
	api := newTestAPI(t)
	api.seedBlogs()
	api.login("root", "salainen")

	resp, body := api.do(http.MethodPost, "/api/testing/reset", nil, "")
	expectStatus(t, resp, body, http.StatusUnauthorized)
	if n := len(api.blogsInDb()); n != len(initialBlogs) {
		t.Fatalf("unauthorized reset changed the store: %d blogs", n)
	}

	resp, body = api.do(http.MethodPost, "/api/testing/reset", nil, testResetToken)
	expectStatus(t, resp, body, http.StatusNoContent)
	if n := len(api.blogsInDb()); n != 0 {
		t.Fatalf("expected no blogs, got %d", n)
	}
	if n := len(api.usersInDb()); n != 0 {
		t.Fatalf("expected no users, got %d", n)
	}
}

func TestTestingRoutesOnlyInTestMode(t *testing.T) {
	api := newTestAPI(t, func(c *config.Config) { c.Env = "production" })

	resp, body := api.do(http.MethodPost, "/api/testing/reset", nil, testResetToken)
	expectStatus(t, resp, body, http.StatusNotFound)
}

func TestUnknownEndpoint(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/nope", "/api/nope"} {
		resp, body := api.do(http.MethodGet, path, nil, "")
		expectStatus(t, resp, body, http.StatusNotFound)
		expectJSON(t, resp)
		if msg := errorMessage(t, body); msg != "unknown endpoint" {
			t.Errorf("%s: unexpected error %q", path, msg)
		}
	}
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.do(http.MethodGet, "/health", nil, "")
	expectStatus(t, resp, body, http.StatusOK)
	var m map[string]string
	decode(t, body, &m)
	if m["status"] != "ok" {
		t.Errorf("expected status ok, got %v", m["status"])
	}
}

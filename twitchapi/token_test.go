package twitchapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTokenServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostForm.Get("client_id"); got != "test-client" {
			t.Errorf("client_id = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-token-123",
			"expires_in":   3600,
			"token_type":   "bearer",
		})
	}))
}

func TestTokenSource_GetCached(t *testing.T) {
	var calls int32
	server := newTokenServer(t, &calls)
	defer server.Close()

	ts := &TokenSource{ClientID: "test-client", ClientSecret: "test-secret", TokenURL: server.URL}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tok, err := ts.Get(ctx)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if tok != "test-token-123" {
			t.Errorf("Get() = %s, want test-token-123", tok)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected 1 token request, got %d", n)
	}
}

func TestTokenSource_CustomHTTPClient(t *testing.T) {
	var calls int32
	server := newTokenServer(t, &calls)
	defer server.Close()

	ts := &TokenSource{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		HTTPClient:   &http.Client{Transport: &rewriteTransport{Transport: http.DefaultTransport, host: server.URL}},
	}
	tok, err := ts.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if tok != "test-token-123" || atomic.LoadInt32(&calls) != 1 {
		t.Errorf("token %q after %d calls", tok, calls)
	}
}

func TestTokenSource_MissingCredentials(t *testing.T) {
	ts := &TokenSource{ClientID: "only-id"}
	if _, err := ts.Get(context.Background()); err == nil {
		t.Fatal("expected error for missing secret")
	}
}

func TestTokenSource_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid client"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	ts := &TokenSource{ClientID: "a", ClientSecret: "b", TokenURL: server.URL}
	if _, err := ts.Get(context.Background()); err == nil {
		t.Fatal("expected error from failing token endpoint")
	}
}

func TestTokenFunc(t *testing.T) {
	var g TokenGetter = TokenFunc(func(context.Context) (string, error) { return "static", nil })
	tok, err := g.Get(context.Background())
	if err != nil || tok != "static" {
		t.Fatalf("TokenFunc.Get() = %q, %v", tok, err)
	}
}

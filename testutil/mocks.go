package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MockTwitchServer fakes the Twitch OAuth and Helix endpoints. Point TokenSource.TokenURL at
// URL+"/oauth2/token" and HelixClient.BaseURL at URL+"/helix".
type MockTwitchServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockTwitchServer creates a new mock Twitch API server
func NewMockTwitchServer(t *testing.T) *MockTwitchServer {
	t.Helper()
	m := &MockTwitchServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if handler, ok := m.Handlers[key]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test mock response
}

// MockClipsResponse adds a handler for the /helix/clips endpoint
func (m *MockTwitchServer) MockClipsResponse(clips []map[string]any) {
	m.Handlers["/helix/clips"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"data": clips})
	}
}

// MockVideosResponse adds a handler for the /helix/videos endpoint
func (m *MockTwitchServer) MockVideosResponse(videos []map[string]any) {
	m.Handlers["/helix/videos"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"data": videos})
	}
}

// MockGamesResponse adds a handler for the /helix/games endpoint returning games (id -> name)
func (m *MockTwitchServer) MockGamesResponse(games map[string]string) {
	m.Handlers["/helix/games"] = func(w http.ResponseWriter, r *http.Request) {
		var data []map[string]string
		for _, id := range r.URL.Query()["id"] {
			if name, ok := games[id]; ok {
				data = append(data, map[string]string{"id": id, "name": name})
			}
		}
		writeJSON(w, map[string]any{"data": data})
	}
}

// MockOAuthTokenResponse adds a handler for the OAuth token endpoint
func (m *MockTwitchServer) MockOAuthTokenResponse(accessToken string, expiresIn int) {
	m.Handlers["/oauth2/token"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"access_token": accessToken,
			"expires_in":   expiresIn,
			"token_type":   "bearer",
		})
	}
}

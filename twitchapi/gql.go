package twitchapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
)

const (
	// DefaultGQLURL is Twitch's public GraphQL endpoint.
	DefaultGQLURL = "https://gql.twitch.tv/gql"
	// WebClientID is the client id the Twitch web player sends to GQL.
	WebClientID = "kimne78kx3ncx6brgo4mv6wki5h1ko"

	clipTokenQueryHash = "36b89d2507fce29e5ca551df756d27c1cfe079e2609642b4390aa4c35796eb11"
)

// ErrClipNotFound is returned when GQL knows no clip for the slug.
var ErrClipNotFound = errors.New("twitch clip not found")

// GQLClient signs clip playback URLs.
type GQLClient struct {
	ClientID   string
	HTTPClient *http.Client
	Endpoint   string
}

type gqlRequest struct {
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
	Extensions    map[string]any `json:"extensions"`
}

type clipTokenResponse struct {
	Data struct {
		Clip *struct {
			PlaybackAccessToken struct {
				Signature string `json:"signature"`
				Value     string `json:"value"`
			} `json:"playbackAccessToken"`
			VideoQualities []struct {
				Quality   string `json:"quality"`
				SourceURL string `json:"sourceURL"`
			} `json:"videoQualities"`
		} `json:"clip"`
	} `json:"data"`
}

// ClipPlaybackURL returns a signed, directly playable URL for the best quality of the clip.
// The signature expires, so callers must not cache the result beyond one playback.
func (g *GQLClient) ClipPlaybackURL(ctx context.Context, slug string) (string, error) {
	if slug == "" {
		return "", errors.New("clip slug empty")
	}
	payload, err := json.Marshal(gqlRequest{
		OperationName: "VideoAccessToken_Clip",
		Variables:     map[string]any{"slug": slug},
		Extensions: map[string]any{
			"persistedQuery": map[string]any{"version": 1, "sha256Hash": clipTokenQueryHash},
		},
	})
	if err != nil {
		return "", err
	}
	endpoint := g.Endpoint
	if endpoint == "" {
		endpoint = DefaultGQLURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	clientID := g.ClientID
	if clientID == "" {
		clientID = WebClientID
	}
	req.Header.Set("Client-Id", clientID)
	req.Header.Set("Content-Type", "application/json")
	hc := g.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &APIError{Status: resp.StatusCode, Body: string(b)}
	}
	var body clipTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	clip := body.Data.Clip
	if clip == nil || len(clip.VideoQualities) == 0 {
		return "", ErrClipNotFound
	}
	best, bestQ := "", -1
	for _, vq := range clip.VideoQualities {
		q, _ := strconv.Atoi(vq.Quality)
		if vq.SourceURL != "" && q > bestQ {
			best, bestQ = vq.SourceURL, q
		}
	}
	if best == "" {
		return "", ErrClipNotFound
	}
	tok := clip.PlaybackAccessToken
	return best + "?sig=" + url.QueryEscape(tok.Signature) + "&token=" + url.QueryEscape(tok.Value), nil
}

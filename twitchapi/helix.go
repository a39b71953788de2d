// Package twitchapi contains minimal helpers for the Twitch APIs the clip queue reads from:
// Helix clip, video and game lookups authenticated with an app access token, and the public GQL
// endpoint that signs clip playback URLs.
package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultHelixURL is the Helix API root.
const DefaultHelixURL = "https://api.twitch.tv/helix"

// APIError is a non-2xx response from a Twitch endpoint.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitch api: status %d: %s", e.Status, e.Body)
}

// StatusCode returns the HTTP status.
func (e *APIError) StatusCode() int { return e.Status }

// HelixClient provides the lookups needed to describe clips and VODs.
type HelixClient struct {
	Tokens     TokenGetter
	ClientID   string
	HTTPClient *http.Client
	BaseURL    string
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

func (hc *HelixClient) get(ctx context.Context, path string, q url.Values, out any) error {
	if hc.Tokens == nil {
		return fmt.Errorf("helix: no token source")
	}
	tok, err := hc.Tokens.Get(ctx)
	if err != nil {
		return err
	}
	base := hc.BaseURL
	if base == "" {
		base = DefaultHelixURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return err
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := hc.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{Status: resp.StatusCode, Body: string(b)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Clip is a Helix clip.
type Clip struct {
	ID              string    `json:"id"`
	URL             string    `json:"url"`
	EmbedURL        string    `json:"embed_url"`
	BroadcasterName string    `json:"broadcaster_name"`
	CreatorName     string    `json:"creator_name"`
	VideoID         string    `json:"video_id"`
	GameID          string    `json:"game_id"`
	Title           string    `json:"title"`
	ViewCount       int       `json:"view_count"`
	CreatedAt       time.Time `json:"created_at"`
	ThumbnailURL    string    `json:"thumbnail_url"`
	Duration        float64   `json:"duration"`
}

// GetClips looks up clips by slug. Unknown slugs are simply absent from the result.
func (hc *HelixClient) GetClips(ctx context.Context, ids ...string) ([]Clip, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("clip ids empty")
	}
	q := url.Values{}
	for _, id := range ids {
		q.Add("id", id)
	}
	var body struct {
		Data []Clip `json:"data"`
	}
	if err := hc.get(ctx, "/clips", q, &body); err != nil {
		return nil, err
	}
	return body.Data, nil
}

// Video is a Helix video (VOD, highlight or upload).
type Video struct {
	ID           string    `json:"id"`
	UserName     string    `json:"user_name"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnail_url"`
	Duration     string    `json:"duration"`
	Type         string    `json:"type"`
	ViewCount    int       `json:"view_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// DurationSeconds parses Helix durations such as "1h2m3s".
func (v Video) DurationSeconds() int {
	d, err := time.ParseDuration(v.Duration)
	if err != nil {
		return 0
	}
	return int(d.Seconds())
}

// GetVideos looks up videos by id.
func (hc *HelixClient) GetVideos(ctx context.Context, ids ...string) ([]Video, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("video ids empty")
	}
	q := url.Values{}
	for _, id := range ids {
		q.Add("id", id)
	}
	var body struct {
		Data []Video `json:"data"`
	}
	if err := hc.get(ctx, "/videos", q, &body); err != nil {
		return nil, err
	}
	return body.Data, nil
}

// GetGames resolves game ids to names.
func (hc *HelixClient) GetGames(ctx context.Context, ids ...string) (map[string]string, error) {
	q := url.Values{}
	for _, id := range ids {
		if id != "" {
			q.Add("id", id)
		}
	}
	if len(q) == 0 {
		return map[string]string{}, nil
	}
	var body struct {
		Data []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := hc.get(ctx, "/games", q, &body); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(body.Data))
	for _, g := range body.Data {
		out[g.ID] = g.Name
	}
	return out, nil
}

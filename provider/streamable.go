package provider

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/onnwee/clipqueue/queue"
)

const defaultStreamableAPI = "https://api.streamable.com"

// StreamableProvider handles streamable.com links.
type StreamableProvider struct {
	HTTPClient *http.Client
	BaseURL    string
}

func (p *StreamableProvider) Name() Name { return Streamable }

func (p *StreamableProvider) ExtractID(rawURL string) (string, bool) {
	u, ok := parseLink(rawURL)
	if !ok || u.host != "streamable.com" {
		return "", false
	}
	id := u.seg(0)
	switch id {
	case "e", "o", "s":
		id = u.seg(1)
	}
	id = strings.ToLower(id)
	if !allMatch(id, isBase36) {
		return "", false
	}
	return id, true
}

type streamableVideo struct {
	Status       int     `json:"status"`
	Title        string  `json:"title"`
	ThumbnailURL string  `json:"thumbnail_url"`
	Views        int     `json:"views"`
	Duration     float64 `json:"duration"`
	Files        map[string]struct {
		URL      string  `json:"url"`
		Duration float64 `json:"duration"`
	} `json:"files"`
}

func (p *StreamableProvider) video(ctx context.Context, id string) (*streamableVideo, error) {
	base := p.BaseURL
	if base == "" {
		base = defaultStreamableAPI
	}
	var v streamableVideo
	if err := (fetcher{p.HTTPClient}).getJSON(ctx, base+"/videos/"+id, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// mp4 returns the best MP4 rendition URL with an explicit scheme.
func (v *streamableVideo) mp4() (string, float64) {
	for _, key := range []string{"mp4", "mp4-high", "mp4-mobile"} {
		if f, ok := v.Files[key]; ok && f.URL != "" {
			return httpsURL(f.URL), f.Duration
		}
	}
	return "", 0
}

func (p *StreamableProvider) FetchMetadata(ctx context.Context, id string) (*queue.Metadata, error) {
	v, err := p.video(ctx, id)
	if err != nil {
		return nil, err
	}
	_, dur := v.mp4()
	if dur == 0 {
		dur = v.Duration
	}
	title := v.Title
	if title == "" {
		title = id
	}
	return &queue.Metadata{
		Title:        title,
		URL:          "https://streamable.com/" + id,
		ThumbnailURL: httpsURL(v.ThumbnailURL),
		Duration:     int(math.Round(dur)),
		Views:        v.Views,
		Platform:     "streamable",
	}, nil
}

func (p *StreamableProvider) WatchURL(_ context.Context, id string) (string, error) {
	return "https://streamable.com/" + id, nil
}

func (p *StreamableProvider) EmbedURL(_ context.Context, id string) (string, error) {
	return "https://streamable.com/e/" + id, nil
}

// AutoplayURL returns the signed MP4 URL, which expires.
func (p *StreamableProvider) AutoplayURL(ctx context.Context, id string) (string, error) {
	v, err := p.video(ctx, id)
	if err != nil {
		return "", err
	}
	u, _ := v.mp4()
	if u == "" {
		return "", fmt.Errorf("%w: streamable %s has no mp4", ErrNotFound, id)
	}
	return u, nil
}

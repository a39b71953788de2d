package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/onnwee/clipqueue/queue"
)

const defaultKickAPI = "https://kick.com/api/v2"

// KickClipProvider handles kick.com clip links.
type KickClipProvider struct {
	HTTPClient *http.Client
	BaseURL    string
}

func (p *KickClipProvider) Name() Name { return KickClip }

func isKickClipID(s string) bool { return strings.HasPrefix(s, "clip_") && allMatch(s, isSlugRune) }

func (p *KickClipProvider) ExtractID(rawURL string) (string, bool) {
	u, ok := parseLink(rawURL)
	if !ok || u.host != "kick.com" {
		return "", false
	}
	var id string
	switch {
	case u.seg(1) == "clips":
		id = u.seg(2)
	case u.seg(0) == "clips":
		id = u.seg(1)
	default:
		id = u.query.Get("clip")
	}
	if !isKickClipID(id) {
		return "", false
	}
	return id, true
}

type kickClip struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	ClipURL      string    `json:"clip_url"`
	VideoURL     string    `json:"video_url"`
	ThumbnailURL string    `json:"thumbnail_url"`
	Duration     int       `json:"duration"`
	Views        int       `json:"views"`
	ViewCount    int       `json:"view_count"`
	CreatedAt    time.Time `json:"created_at"`
	Category     struct {
		Name string `json:"name"`
	} `json:"category"`
	Channel struct {
		Username string `json:"username"`
		Slug     string `json:"slug"`
	} `json:"channel"`
}

func (p *KickClipProvider) clip(ctx context.Context, id string) (*kickClip, error) {
	base := p.BaseURL
	if base == "" {
		base = defaultKickAPI
	}
	var body struct {
		Clip *kickClip `json:"clip"`
	}
	if err := (fetcher{p.HTTPClient}).getJSON(ctx, base+"/clips/"+url.PathEscape(id), &body); err != nil {
		return nil, err
	}
	if body.Clip == nil {
		return nil, fmt.Errorf("%w: kick clip %s", ErrNotFound, id)
	}
	return body.Clip, nil
}

func (c *kickClip) playable() string {
	if c.VideoURL != "" {
		return c.VideoURL
	}
	return c.ClipURL
}

func (p *KickClipProvider) FetchMetadata(ctx context.Context, id string) (*queue.Metadata, error) {
	c, err := p.clip(ctx, id)
	if err != nil {
		return nil, err
	}
	views := c.Views
	if views == 0 {
		views = c.ViewCount
	}
	watch := "https://kick.com/clips/" + id
	if c.Channel.Slug != "" {
		watch = "https://kick.com/" + c.Channel.Slug + "/clips/" + id
	}
	return &queue.Metadata{
		Title:        c.Title,
		Author:       c.Channel.Username,
		Category:     c.Category.Name,
		URL:          watch,
		ThumbnailURL: c.ThumbnailURL,
		Duration:     c.Duration,
		Views:        views,
		CreatedAt:    c.CreatedAt,
		Platform:     "kick",
	}, nil
}

func (p *KickClipProvider) WatchURL(ctx context.Context, id string) (string, error) {
	c, err := p.clip(ctx, id)
	if err != nil || c.Channel.Slug == "" {
		return "https://kick.com/clips/" + id, nil
	}
	return "https://kick.com/" + c.Channel.Slug + "/clips/" + id, nil
}

func (p *KickClipProvider) EmbedURL(ctx context.Context, id string) (string, error) {
	return p.AutoplayURL(ctx, id)
}

func (p *KickClipProvider) AutoplayURL(ctx context.Context, id string) (string, error) {
	c, err := p.clip(ctx, id)
	if err != nil {
		return "", err
	}
	if u := c.playable(); u != "" {
		return u, nil
	}
	return "", fmt.Errorf("%w: kick clip %s has no video", ErrNotFound, id)
}

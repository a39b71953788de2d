package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/onnwee/clipqueue/queue"
	"github.com/onnwee/clipqueue/youtubeapi"
)

// YouTubeLookup is the Data API surface used for videos.
type YouTubeLookup interface {
	Video(ctx context.Context, id string) (*youtubeapi.Video, error)
	CategoryTitle(ctx context.Context, id string) (string, error)
}

const defaultYouTubeOEmbed = "https://www.youtube.com/oembed"

// YouTubeProvider handles youtube.com and youtu.be links. Without an API client it falls back
// to oEmbed, which has no duration or view count.
type YouTubeProvider struct {
	API        YouTubeLookup
	HTTPClient *http.Client
	OEmbedURL  string
}

func (p *YouTubeProvider) Name() Name { return YouTube }

func isYouTubeID(s string) bool { return len(s) == 11 && allMatch(s, isSlugRune) }

func (p *YouTubeProvider) ExtractID(rawURL string) (string, bool) {
	u, ok := parseLink(rawURL)
	if !ok {
		return "", false
	}
	var id string
	switch u.host {
	case "youtu.be":
		id = u.seg(0)
	case "youtube.com", "music.youtube.com", "youtube-nocookie.com":
		switch u.seg(0) {
		case "watch":
			id = u.query.Get("v")
		case "shorts", "live", "embed", "v":
			id = u.seg(1)
		}
	}
	if !isYouTubeID(id) {
		return "", false
	}
	return id, true
}

func (p *YouTubeProvider) FetchMetadata(ctx context.Context, id string) (*queue.Metadata, error) {
	watch, _ := p.WatchURL(ctx, id)
	if p.API == nil {
		return p.oembed(ctx, id, watch)
	}
	v, err := p.API.Video(ctx, id)
	if errors.Is(err, youtubeapi.ErrNotFound) {
		return nil, fmt.Errorf("%w: youtube video %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	md := &queue.Metadata{
		Title:        v.Title,
		Author:       v.ChannelTitle,
		URL:          watch,
		ThumbnailURL: v.ThumbnailURL,
		Duration:     v.Duration,
		Views:        int(v.ViewCount),
		CreatedAt:    v.PublishedAt,
		Platform:     "youtube",
	}
	if md.ThumbnailURL == "" {
		md.ThumbnailURL = youTubeThumbnail(id)
	}
	if v.CategoryID != "" {
		if name, err := p.API.CategoryTitle(ctx, v.CategoryID); err != nil {
			slog.Debug("youtube category lookup failed", slog.String("category_id", v.CategoryID), slog.Any("err", err))
		} else {
			md.Category = name
		}
	}
	return md, nil
}

func (p *YouTubeProvider) oembed(ctx context.Context, id, watch string) (*queue.Metadata, error) {
	base := p.OEmbedURL
	if base == "" {
		base = defaultYouTubeOEmbed
	}
	var body struct {
		Title        string `json:"title"`
		AuthorName   string `json:"author_name"`
		ThumbnailURL string `json:"thumbnail_url"`
	}
	q := url.Values{"url": {watch}, "format": {"json"}}
	if err := (fetcher{p.HTTPClient}).getJSON(ctx, base+"?"+q.Encode(), &body); err != nil {
		return nil, err
	}
	md := &queue.Metadata{
		Title:        body.Title,
		Author:       body.AuthorName,
		URL:          watch,
		ThumbnailURL: body.ThumbnailURL,
		Platform:     "youtube",
	}
	if md.ThumbnailURL == "" {
		md.ThumbnailURL = youTubeThumbnail(id)
	}
	return md, nil
}

func youTubeThumbnail(id string) string { return "https://i.ytimg.com/vi/" + id + "/hqdefault.jpg" }

func (p *YouTubeProvider) WatchURL(_ context.Context, id string) (string, error) {
	return "https://www.youtube.com/watch?v=" + id, nil
}

func (p *YouTubeProvider) EmbedURL(_ context.Context, id string) (string, error) {
	return "https://www.youtube.com/embed/" + id, nil
}

// AutoplayURL returns the embed player with autoplay on; YouTube serves no direct media files.
func (p *YouTubeProvider) AutoplayURL(_ context.Context, id string) (string, error) {
	return "https://www.youtube.com/embed/" + id + "?autoplay=1", nil
}

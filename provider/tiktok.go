package provider

import (
	"context"
	"net/http"
	"net/url"

	"github.com/onnwee/clipqueue/queue"
)

const defaultTikTokOEmbed = "https://www.tiktok.com/oembed"

// TikTokProvider handles tiktok.com video links. Metadata comes from oEmbed.
type TikTokProvider struct {
	HTTPClient *http.Client
	OEmbedURL  string
}

func (p *TikTokProvider) Name() Name { return TikTok }

func (p *TikTokProvider) ExtractID(rawURL string) (string, bool) {
	u, ok := parseLink(rawURL)
	if !ok || u.host != "tiktok.com" {
		return "", false
	}
	var id string
	switch {
	case u.seg(1) == "video" && len(u.seg(0)) > 1 && u.seg(0)[0] == '@':
		id = u.seg(2)
	case u.seg(0) == "embed" && u.seg(1) == "v2":
		id = u.seg(2)
	case u.seg(0) == "embed":
		id = u.seg(1)
	}
	if !allMatch(id, isDigit) {
		return "", false
	}
	return id, true
}

func (p *TikTokProvider) FetchMetadata(ctx context.Context, id string) (*queue.Metadata, error) {
	watch, _ := p.WatchURL(ctx, id)
	base := p.OEmbedURL
	if base == "" {
		base = defaultTikTokOEmbed
	}
	var body struct {
		Title        string `json:"title"`
		AuthorName   string `json:"author_name"`
		AuthorURL    string `json:"author_url"`
		ThumbnailURL string `json:"thumbnail_url"`
	}
	if err := (fetcher{p.HTTPClient}).getJSON(ctx, base+"?"+url.Values{"url": {watch}}.Encode(), &body); err != nil {
		return nil, err
	}
	return &queue.Metadata{
		Title:        body.Title,
		Author:       body.AuthorName,
		URL:          watch,
		ThumbnailURL: body.ThumbnailURL,
		Platform:     "tiktok",
	}, nil
}

// WatchURL uses a placeholder handle; TikTok resolves videos by id alone.
func (p *TikTokProvider) WatchURL(_ context.Context, id string) (string, error) {
	return "https://www.tiktok.com/@_/video/" + id, nil
}

func (p *TikTokProvider) EmbedURL(_ context.Context, id string) (string, error) {
	return "https://www.tiktok.com/embed/v2/" + id, nil
}

func (p *TikTokProvider) AutoplayURL(context.Context, string) (string, error) {
	return "", ErrAutoplayUnsupported
}

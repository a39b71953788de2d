package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/onnwee/clipqueue/queue"
)

const defaultInstagramBase = "https://www.instagram.com"

// InstagramProvider handles instagram.com post and reel links. Instagram has no keyless API, so
// metadata is read from the OpenGraph tags of the post page.
type InstagramProvider struct {
	HTTPClient *http.Client
	BaseURL    string
}

func (p *InstagramProvider) Name() Name { return Instagram }

func (p *InstagramProvider) ExtractID(rawURL string) (string, bool) {
	u, ok := parseLink(rawURL)
	if !ok || u.host != "instagram.com" {
		return "", false
	}
	var id string
	switch u.seg(0) {
	case "p", "reel", "reels", "tv":
		id = u.seg(1)
	default:
		// instagram.com/<user>/reel/<code>
		switch u.seg(1) {
		case "p", "reel", "reels", "tv":
			id = u.seg(2)
		}
	}
	if !allMatch(id, isSlugRune) {
		return "", false
	}
	return id, true
}

func (p *InstagramProvider) tags(ctx context.Context, id string) (map[string]string, error) {
	base := p.BaseURL
	if base == "" {
		base = defaultInstagramBase
	}
	body, err := (fetcher{p.HTTPClient}).getPage(ctx, base+"/p/"+id+"/")
	if err != nil {
		return nil, err
	}
	defer closeBody(body)
	tags, err := openGraph(body)
	if err != nil {
		return nil, fmt.Errorf("instagram page %s: %w", id, err)
	}
	if tags["og:title"] == "" && tags["og:image"] == "" {
		return nil, fmt.Errorf("%w: instagram post %s", ErrNotFound, id)
	}
	return tags, nil
}

func (p *InstagramProvider) FetchMetadata(ctx context.Context, id string) (*queue.Metadata, error) {
	tags, err := p.tags(ctx, id)
	if err != nil {
		return nil, err
	}
	title := tags["og:title"]
	author := ""
	// og:title reads `<name> on Instagram: "<caption>"`.
	if name, caption, ok := strings.Cut(title, " on Instagram"); ok {
		author = strings.TrimSpace(name)
		caption = strings.TrimPrefix(caption, ":")
		if c := strings.Trim(strings.TrimSpace(caption), `"`); c != "" {
			title = c
		}
	}
	return &queue.Metadata{
		Title:        title,
		Author:       author,
		URL:          "https://www.instagram.com/p/" + id + "/",
		ThumbnailURL: tags["og:image"],
		Platform:     "instagram",
	}, nil
}

func (p *InstagramProvider) WatchURL(_ context.Context, id string) (string, error) {
	return "https://www.instagram.com/p/" + id + "/", nil
}

func (p *InstagramProvider) EmbedURL(_ context.Context, id string) (string, error) {
	return "https://www.instagram.com/p/" + id + "/embed", nil
}

func (p *InstagramProvider) AutoplayURL(ctx context.Context, id string) (string, error) {
	tags, err := p.tags(ctx, id)
	if err != nil {
		return "", err
	}
	for _, k := range []string{"og:video:secure_url", "og:video", "og:video:url"} {
		if v := tags[k]; v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: instagram post %s has no video", ErrAutoplayUnsupported, id)
}

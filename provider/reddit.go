package provider

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/onnwee/clipqueue/queue"
)

const defaultRedditBase = "https://www.reddit.com"

// RedditProvider handles reddit posts. A post either hosts its own video or links to media on
// another platform; the Registry follows the latter.
type RedditProvider struct {
	HTTPClient *http.Client
	BaseURL    string
}

func (p *RedditProvider) Name() Name { return Reddit }

func (p *RedditProvider) ExtractID(rawURL string) (string, bool) {
	u, ok := parseLink(rawURL)
	if !ok {
		return "", false
	}
	host := strings.TrimPrefix(strings.TrimPrefix(u.host, "old."), "new.")
	var id string
	switch host {
	case "redd.it":
		id = u.seg(0)
	case "reddit.com":
		switch {
		case u.seg(0) == "comments":
			id = u.seg(1)
		case (u.seg(0) == "r" || u.seg(0) == "u" || u.seg(0) == "user") && u.seg(2) == "comments":
			id = u.seg(3)
		}
	}
	id = strings.ToLower(id)
	if !allMatch(id, isBase36) {
		return "", false
	}
	return id, true
}

type redditVideo struct {
	FallbackURL string `json:"fallback_url"`
	HLSURL      string `json:"hls_url"`
	Duration    int    `json:"duration"`
}

type redditMedia struct {
	RedditVideo *redditVideo `json:"reddit_video"`
}

type redditPost struct {
	Title         string       `json:"title"`
	Author        string       `json:"author"`
	Subreddit     string       `json:"subreddit_name_prefixed"`
	Permalink     string       `json:"permalink"`
	Thumbnail     string       `json:"thumbnail"`
	CreatedUTC    float64      `json:"created_utc"`
	Score         int          `json:"score"`
	URL           string       `json:"url"`
	OverriddenURL string       `json:"url_overridden_by_dest"`
	IsSelf        bool         `json:"is_self"`
	Media         *redditMedia `json:"media"`
	SecureMedia   *redditMedia `json:"secure_media"`
	Preview       struct {
		Images []struct {
			Source struct {
				URL string `json:"url"`
			} `json:"source"`
		} `json:"images"`
	} `json:"preview"`
	CrosspostParents []redditPost `json:"crosspost_parent_list"`
}

func (rp *redditPost) video() *redditVideo {
	for _, m := range []*redditMedia{rp.SecureMedia, rp.Media} {
		if m != nil && m.RedditVideo != nil && (m.RedditVideo.FallbackURL != "" || m.RedditVideo.HLSURL != "") {
			return m.RedditVideo
		}
	}
	for i := range rp.CrosspostParents {
		if v := rp.CrosspostParents[i].video(); v != nil {
			return v
		}
	}
	return nil
}

func (rp *redditPost) outbound() string {
	for _, raw := range []string{rp.OverriddenURL, rp.URL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		host := strings.ToLower(u.Hostname())
		if strings.HasSuffix(host, "reddit.com") || strings.HasSuffix(host, "redd.it") || host == "v.redd.it" {
			continue
		}
		return raw
	}
	return ""
}

func (p *RedditProvider) post(ctx context.Context, id string) (*redditPost, error) {
	base := p.BaseURL
	if base == "" {
		base = defaultRedditBase
	}
	var listings []struct {
		Data struct {
			Children []struct {
				Data redditPost `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := (fetcher{p.HTTPClient}).getJSON(ctx, base+"/comments/"+id+".json?raw_json=1", &listings); err != nil {
		return nil, err
	}
	if len(listings) == 0 || len(listings[0].Data.Children) == 0 {
		return nil, fmt.Errorf("%w: reddit post %s", ErrNotFound, id)
	}
	return &listings[0].Data.Children[0].Data, nil
}

// Unwrap returns the post's own video metadata, or the outbound link when the post only points
// elsewhere.
func (p *RedditProvider) Unwrap(ctx context.Context, id string) (*queue.Metadata, string, error) {
	rp, err := p.post(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if v := rp.video(); v != nil {
		md := &queue.Metadata{
			Title:    rp.Title,
			Author:   rp.Author,
			Category: rp.Subreddit,
			URL:      defaultRedditBase + rp.Permalink,
			Duration: v.Duration,
			Platform: "reddit",
		}
		if rp.CreatedUTC > 0 {
			sec, frac := math.Modf(rp.CreatedUTC)
			md.CreatedAt = time.Unix(int64(sec), int64(frac*1e9)).UTC()
		}
		if len(rp.Preview.Images) > 0 {
			md.ThumbnailURL = rp.Preview.Images[0].Source.URL
		} else if strings.HasPrefix(rp.Thumbnail, "http") {
			md.ThumbnailURL = rp.Thumbnail
		}
		if rp.Permalink == "" {
			md.URL = defaultRedditBase + "/comments/" + id
		}
		return md, "", nil
	}
	if out := rp.outbound(); out != "" {
		return nil, out, nil
	}
	return nil, "", fmt.Errorf("%w: reddit post %s", ErrNoMedia, id)
}

func (p *RedditProvider) FetchMetadata(ctx context.Context, id string) (*queue.Metadata, error) {
	md, _, err := p.Unwrap(ctx, id)
	if err != nil {
		return nil, err
	}
	if md == nil {
		return nil, fmt.Errorf("%w: reddit post %s links elsewhere", ErrNoMedia, id)
	}
	return md, nil
}

func (p *RedditProvider) WatchURL(_ context.Context, id string) (string, error) {
	return defaultRedditBase + "/comments/" + id, nil
}

func (p *RedditProvider) EmbedURL(ctx context.Context, id string) (string, error) {
	rp, err := p.post(ctx, id)
	if err != nil || rp.Permalink == "" {
		return "https://embed.reddit.com/comments/" + id + "?embed=true", nil
	}
	return "https://embed.reddit.com" + rp.Permalink + "?embed=true", nil
}

func (p *RedditProvider) AutoplayURL(ctx context.Context, id string) (string, error) {
	rp, err := p.post(ctx, id)
	if err != nil {
		return "", err
	}
	v := rp.video()
	if v == nil {
		return "", fmt.Errorf("%w: reddit post %s", ErrAutoplayUnsupported, id)
	}
	if v.FallbackURL != "" {
		return v.FallbackURL, nil
	}
	return v.HLSURL, nil
}

package provider

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/clipqueue/queue"
)

const (
	defaultTwitterSyndication = "https://cdn.syndication.twimg.com/tweet-result"
	defaultTwitterOEmbed      = "https://publish.twitter.com/oembed"
)

// TwitterProvider handles twitter.com and x.com status links. Metadata and media come from the
// public syndication endpoint; oEmbed is the fallback for the title and author.
type TwitterProvider struct {
	HTTPClient     *http.Client
	SyndicationURL string
	OEmbedURL      string
}

func (p *TwitterProvider) Name() Name { return Twitter }

var twitterHosts = map[string]bool{
	"twitter.com": true, "x.com": true, "fxtwitter.com": true, "vxtwitter.com": true, "fixupx.com": true,
}

func (p *TwitterProvider) ExtractID(rawURL string) (string, bool) {
	u, ok := parseLink(rawURL)
	if !ok || !twitterHosts[u.host] {
		return "", false
	}
	var id string
	switch {
	case u.seg(1) == "status":
		id = u.seg(2)
	case u.seg(2) == "status":
		id = u.seg(3)
	}
	if !allMatch(id, isDigit) {
		return "", false
	}
	return id, true
}

type tweetResult struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	User      struct {
		Name       string `json:"name"`
		ScreenName string `json:"screen_name"`
	} `json:"user"`
	MediaDetails []struct {
		Type          string `json:"type"`
		MediaURLHTTPS string `json:"media_url_https"`
		VideoInfo     struct {
			DurationMillis int `json:"duration_millis"`
			Variants       []struct {
				Bitrate     int    `json:"bitrate"`
				ContentType string `json:"content_type"`
				URL         string `json:"url"`
			} `json:"variants"`
		} `json:"video_info"`
	} `json:"mediaDetails"`
}

// syndicationToken derives the token the syndication endpoint expects: (id / 1e15 * pi) in
// base 36 with zeros and the radix point removed.
func syndicationToken(id string) string {
	n, err := strconv.ParseFloat(id, 64)
	if err != nil {
		return "0"
	}
	v := n / 1e15 * math.Pi
	whole := math.Floor(v)
	frac := v - whole
	var b strings.Builder
	b.WriteString(strconv.FormatInt(int64(whole), 36))
	const digits = "0123456789abcdefghijklmnopqrstuvwxyz"
	for i := 0; i < 12 && frac > 0; i++ {
		frac *= 36
		d := int(frac)
		b.WriteByte(digits[d])
		frac -= float64(d)
	}
	tok := strings.ReplaceAll(b.String(), "0", "")
	if tok == "" {
		return "0"
	}
	return tok
}

func (p *TwitterProvider) tweet(ctx context.Context, id string) (*tweetResult, error) {
	base := p.SyndicationURL
	if base == "" {
		base = defaultTwitterSyndication
	}
	q := url.Values{"id": {id}, "lang": {"en"}, "token": {syndicationToken(id)}}
	var t tweetResult
	if err := (fetcher{p.HTTPClient}).getJSON(ctx, base+"?"+q.Encode(), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (p *TwitterProvider) FetchMetadata(ctx context.Context, id string) (*queue.Metadata, error) {
	watch, _ := p.WatchURL(ctx, id)
	t, err := p.tweet(ctx, id)
	if err != nil {
		return p.oembed(ctx, watch, err)
	}
	md := &queue.Metadata{
		Title:     strings.Join(strings.Fields(t.Text), " "),
		Author:    t.User.ScreenName,
		URL:       watch,
		CreatedAt: t.CreatedAt,
		Platform:  "twitter",
	}
	if md.Author == "" {
		md.Author = t.User.Name
	}
	for _, m := range t.MediaDetails {
		if md.ThumbnailURL == "" {
			md.ThumbnailURL = m.MediaURLHTTPS
		}
		if m.VideoInfo.DurationMillis > 0 {
			md.Duration = int(math.Round(float64(m.VideoInfo.DurationMillis) / 1000))
			md.ThumbnailURL = m.MediaURLHTTPS
			break
		}
	}
	return md, nil
}

func (p *TwitterProvider) oembed(ctx context.Context, watch string, cause error) (*queue.Metadata, error) {
	base := p.OEmbedURL
	if base == "" {
		base = defaultTwitterOEmbed
	}
	var body struct {
		AuthorName string `json:"author_name"`
		HTML       string `json:"html"`
	}
	q := url.Values{"url": {watch}, "omit_script": {"true"}}
	if err := (fetcher{p.HTTPClient}).getJSON(ctx, base+"?"+q.Encode(), &body); err != nil {
		return nil, fmt.Errorf("twitter syndication: %w; oembed: %w", cause, err)
	}
	return &queue.Metadata{
		Title:    htmlText(body.HTML, "p"),
		Author:   body.AuthorName,
		URL:      watch,
		Platform: "twitter",
	}, nil
}

func (p *TwitterProvider) WatchURL(_ context.Context, id string) (string, error) {
	return "https://twitter.com/i/status/" + id, nil
}

func (p *TwitterProvider) EmbedURL(_ context.Context, id string) (string, error) {
	return "https://platform.twitter.com/embed/Tweet.html?id=" + id, nil
}

// AutoplayURL picks the highest-bitrate MP4 variant of the tweet's video.
func (p *TwitterProvider) AutoplayURL(ctx context.Context, id string) (string, error) {
	t, err := p.tweet(ctx, id)
	if err != nil {
		return "", err
	}
	best, bestRate := "", -1
	for _, m := range t.MediaDetails {
		for _, v := range m.VideoInfo.Variants {
			if v.ContentType == "video/mp4" && v.Bitrate > bestRate {
				best, bestRate = v.URL, v.Bitrate
			}
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w: tweet %s has no video", ErrAutoplayUnsupported, id)
	}
	return best, nil
}

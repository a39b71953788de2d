// Package youtubeapi wraps the YouTube Data API v3 lookups used to describe submitted videos.
// Requests are authenticated with an API key; no user OAuth is involved.
package youtubeapi

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

// ErrNotFound is returned when the API knows no video for the id.
var ErrNotFound = errors.New("youtube video not found")

// Client is a thin wrapper over the generated YouTube service.
type Client struct {
	svc *yt.Service
}

// New builds a client authenticated with apiKey. Extra options (endpoint, HTTP client) are
// appended after the key.
func New(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("youtube api key empty")
	}
	all := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := yt.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// Video is the subset of a video resource the queue displays.
type Video struct {
	ID           string
	Title        string
	ChannelTitle string
	CategoryID   string
	Duration     int // seconds
	ViewCount    uint64
	PublishedAt  time.Time
	ThumbnailURL string
}

// Video fetches one video by id.
func (c *Client) Video(ctx context.Context, id string) (*Video, error) {
	resp, err := c.svc.Videos.List([]string{"snippet", "contentDetails", "statistics"}).Id(id).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, ErrNotFound
	}
	it := resp.Items[0]
	v := &Video{ID: it.Id}
	if it.Snippet != nil {
		v.Title = it.Snippet.Title
		v.ChannelTitle = it.Snippet.ChannelTitle
		v.CategoryID = it.Snippet.CategoryId
		if t, err := time.Parse(time.RFC3339, it.Snippet.PublishedAt); err == nil {
			v.PublishedAt = t
		}
		v.ThumbnailURL = bestThumbnail(it.Snippet.Thumbnails)
	}
	if it.ContentDetails != nil {
		v.Duration = ParseISODuration(it.ContentDetails.Duration)
	}
	if it.Statistics != nil {
		v.ViewCount = it.Statistics.ViewCount
	}
	return v, nil
}

// CategoryTitle resolves a video category id to its display name.
func (c *Client) CategoryTitle(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", nil
	}
	resp, err := c.svc.VideoCategories.List([]string{"snippet"}).Id(id).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return "", nil
	}
	return resp.Items[0].Snippet.Title, nil
}

func bestThumbnail(t *yt.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*yt.Thumbnail{t.Maxres, t.Standard, t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}

var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseISODuration converts an ISO-8601 duration such as "PT1H2M3S" to seconds. Unparseable
// input yields 0.
func ParseISODuration(s string) int {
	m := isoDuration.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	total := 0
	for i, mult := range []int{86400, 3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0
		}
		total += n * mult
	}
	return total
}

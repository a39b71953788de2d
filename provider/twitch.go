package provider

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strings"

	"github.com/onnwee/clipqueue/queue"
	"github.com/onnwee/clipqueue/twitchapi"
)

// TwitchClips is the Helix surface used for clips.
type TwitchClips interface {
	GetClips(ctx context.Context, ids ...string) ([]twitchapi.Clip, error)
	GetGames(ctx context.Context, ids ...string) (map[string]string, error)
}

// TwitchVideos is the Helix surface used for VODs.
type TwitchVideos interface {
	GetVideos(ctx context.Context, ids ...string) ([]twitchapi.Video, error)
}

// ClipSigner mints directly playable clip URLs.
type ClipSigner interface {
	ClipPlaybackURL(ctx context.Context, slug string) (string, error)
}

const (
	vodThumbWidth  = "480"
	vodThumbHeight = "272"
)

func embedParent(p string) string {
	if p == "" {
		return "localhost"
	}
	return p
}

// TwitchClipProvider handles clips.twitch.tv links.
type TwitchClipProvider struct {
	Helix  TwitchClips
	Signer ClipSigner
	// Parent is the domain embedding the Twitch player.
	Parent string
}

func (p *TwitchClipProvider) Name() Name { return TwitchClip }

func (p *TwitchClipProvider) ExtractID(rawURL string) (string, bool) {
	u, ok := parseLink(rawURL)
	if !ok {
		return "", false
	}
	var slug string
	switch u.host {
	case "clips.twitch.tv":
		slug = u.seg(0)
		if slug == "embed" {
			slug = u.query.Get("clip")
		}
	case "twitch.tv":
		switch {
		case u.seg(0) == "clip":
			slug = u.seg(1)
		case u.seg(1) == "clip":
			slug = u.seg(2)
		}
	}
	if !allMatch(slug, isSlugRune) {
		return "", false
	}
	return slug, true
}

func (p *TwitchClipProvider) FetchMetadata(ctx context.Context, slug string) (*queue.Metadata, error) {
	if p.Helix == nil {
		return nil, fmt.Errorf("twitch clips: helix client not configured")
	}
	clips, err := p.Helix.GetClips(ctx, slug)
	if err != nil {
		return nil, err
	}
	if len(clips) == 0 {
		return nil, fmt.Errorf("%w: twitch clip %s", ErrNotFound, slug)
	}
	c := clips[0]
	md := &queue.Metadata{
		Title:        c.Title,
		Author:       c.BroadcasterName,
		URL:          c.URL,
		ThumbnailURL: c.ThumbnailURL,
		Duration:     int(math.Round(c.Duration)),
		Views:        c.ViewCount,
		CreatedAt:    c.CreatedAt,
		Platform:     "twitch",
	}
	if c.GameID != "" {
		games, err := p.Helix.GetGames(ctx, c.GameID)
		if err != nil {
			slog.Debug("twitch game lookup failed", slog.String("game_id", c.GameID), slog.Any("err", err))
		} else {
			md.Category = games[c.GameID]
		}
	}
	if md.URL == "" {
		md.URL = "https://clips.twitch.tv/" + slug
	}
	return md, nil
}

func (p *TwitchClipProvider) WatchURL(_ context.Context, slug string) (string, error) {
	return "https://clips.twitch.tv/" + slug, nil
}

func (p *TwitchClipProvider) EmbedURL(_ context.Context, slug string) (string, error) {
	q := url.Values{"clip": {slug}, "parent": {embedParent(p.Parent)}, "autoplay": {"true"}}
	return "https://clips.twitch.tv/embed?" + q.Encode(), nil
}

func (p *TwitchClipProvider) AutoplayURL(ctx context.Context, slug string) (string, error) {
	if p.Signer == nil {
		return "", ErrAutoplayUnsupported
	}
	return p.Signer.ClipPlaybackURL(ctx, slug)
}

// TwitchVODProvider handles twitch.tv/videos links.
type TwitchVODProvider struct {
	Helix  TwitchVideos
	Parent string
}

func (p *TwitchVODProvider) Name() Name { return TwitchVOD }

func (p *TwitchVODProvider) ExtractID(rawURL string) (string, bool) {
	u, ok := parseLink(rawURL)
	if !ok {
		return "", false
	}
	var id string
	switch u.host {
	case "twitch.tv":
		switch {
		case u.seg(0) == "videos":
			id = u.seg(1)
		case u.seg(1) == "video" || u.seg(1) == "v":
			id = u.seg(2)
		}
	case "player.twitch.tv":
		id = strings.TrimPrefix(u.query.Get("video"), "v")
	}
	if !allMatch(id, isDigit) {
		return "", false
	}
	return id, true
}

func (p *TwitchVODProvider) FetchMetadata(ctx context.Context, id string) (*queue.Metadata, error) {
	if p.Helix == nil {
		return nil, fmt.Errorf("twitch videos: helix client not configured")
	}
	videos, err := p.Helix.GetVideos(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		return nil, fmt.Errorf("%w: twitch video %s", ErrNotFound, id)
	}
	v := videos[0]
	thumb := strings.NewReplacer(
		"%{width}", vodThumbWidth, "%{height}", vodThumbHeight,
		"{width}", vodThumbWidth, "{height}", vodThumbHeight,
	).Replace(v.ThumbnailURL)
	md := &queue.Metadata{
		Title:        v.Title,
		Author:       v.UserName,
		URL:          v.URL,
		ThumbnailURL: thumb,
		Duration:     v.DurationSeconds(),
		Views:        v.ViewCount,
		CreatedAt:    v.CreatedAt,
		Platform:     "twitch",
	}
	if md.URL == "" {
		md.URL = "https://www.twitch.tv/videos/" + id
	}
	return md, nil
}

func (p *TwitchVODProvider) WatchURL(_ context.Context, id string) (string, error) {
	return "https://www.twitch.tv/videos/" + id, nil
}

func (p *TwitchVODProvider) EmbedURL(_ context.Context, id string) (string, error) {
	q := url.Values{"video": {"v" + id}, "parent": {embedParent(p.Parent)}, "autoplay": {"true"}}
	return "https://player.twitch.tv/?" + q.Encode(), nil
}

func (p *TwitchVODProvider) AutoplayURL(context.Context, string) (string, error) {
	return "", ErrAutoplayUnsupported
}

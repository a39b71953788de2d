package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/clipqueue/twitchapi"
	"github.com/onnwee/clipqueue/youtubeapi"
)

func serve(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

type fakeHelix struct {
	clips  []twitchapi.Clip
	videos []twitchapi.Video
	games  map[string]string
	err    error
}

func (f *fakeHelix) GetClips(context.Context, ...string) ([]twitchapi.Clip, error) {
	return f.clips, f.err
}

func (f *fakeHelix) GetGames(context.Context, ...string) (map[string]string, error) {
	return f.games, nil
}

func (f *fakeHelix) GetVideos(context.Context, ...string) ([]twitchapi.Video, error) {
	return f.videos, f.err
}

type signerFunc func(ctx context.Context, slug string) (string, error)

func (f signerFunc) ClipPlaybackURL(ctx context.Context, slug string) (string, error) {
	return f(ctx, slug)
}

func TestTwitchClipProvider(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	p := &TwitchClipProvider{
		Helix: &fakeHelix{
			clips: []twitchapi.Clip{{
				ID: "Slug", Title: "Big play", BroadcasterName: "streamer", GameID: "509658",
				ViewCount: 42, Duration: 29.6, CreatedAt: created, ThumbnailURL: "https://thumb",
			}},
			games: map[string]string{"509658": "Just Chatting"},
		},
		Signer: signerFunc(func(_ context.Context, slug string) (string, error) { return "https://media/" + slug + ".mp4?sig=x", nil }),
		Parent: "example.com",
	}
	ctx := context.Background()

	md, err := p.FetchMetadata(ctx, "Slug")
	require.NoError(t, err)
	assert.Equal(t, "Big play", md.Title)
	assert.Equal(t, "streamer", md.Author)
	assert.Equal(t, "Just Chatting", md.Category)
	assert.Equal(t, 30, md.Duration)
	assert.Equal(t, 42, md.Views)
	assert.Equal(t, "https://clips.twitch.tv/Slug", md.URL)
	assert.Equal(t, created, md.CreatedAt)

	embed, _ := p.EmbedURL(ctx, "Slug")
	assert.Contains(t, embed, "parent=example.com")
	assert.Contains(t, embed, "clip=Slug")

	auto, err := p.AutoplayURL(ctx, "Slug")
	require.NoError(t, err)
	assert.Equal(t, "https://media/Slug.mp4?sig=x", auto)
}

func TestTwitchClipProviderMissing(t *testing.T) {
	p := &TwitchClipProvider{Helix: &fakeHelix{}}
	_, err := p.FetchMetadata(context.Background(), "Slug")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = (&TwitchClipProvider{}).FetchMetadata(context.Background(), "Slug")
	assert.Error(t, err)
}

func TestTwitchVODProvider(t *testing.T) {
	p := &TwitchVODProvider{Helix: &fakeHelix{videos: []twitchapi.Video{{
		ID: "123", Title: "Stream", UserName: "streamer", Duration: "1h2m3s",
		ThumbnailURL: "https://thumb/%{width}x%{height}.jpg",
	}}}}
	md, err := p.FetchMetadata(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, 3723, md.Duration)
	assert.Equal(t, "https://thumb/480x272.jpg", md.ThumbnailURL)
	assert.Equal(t, "https://www.twitch.tv/videos/123", md.URL)

	embed, _ := p.EmbedURL(context.Background(), "123")
	assert.Contains(t, embed, "video=v123")
	assert.Contains(t, embed, "parent=localhost")

	_, err = p.AutoplayURL(context.Background(), "123")
	assert.ErrorIs(t, err, ErrAutoplayUnsupported)
}

type fakeYouTube struct {
	video *youtubeapi.Video
	err   error
}

func (f *fakeYouTube) Video(context.Context, string) (*youtubeapi.Video, error) { return f.video, f.err }

func (f *fakeYouTube) CategoryTitle(context.Context, string) (string, error) { return "Gaming", nil }

func TestYouTubeProviderWithAPI(t *testing.T) {
	p := &YouTubeProvider{API: &fakeYouTube{video: &youtubeapi.Video{
		ID: "dQw4w9WgXcQ", Title: "Song", ChannelTitle: "Rick", CategoryID: "20", Duration: 213, ViewCount: 99,
	}}}
	md, err := p.FetchMetadata(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "Song", md.Title)
	assert.Equal(t, "Rick", md.Author)
	assert.Equal(t, "Gaming", md.Category)
	assert.Equal(t, 213, md.Duration)
	assert.Equal(t, "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg", md.ThumbnailURL)

	_, err = (&YouTubeProvider{API: &fakeYouTube{err: youtubeapi.ErrNotFound}}).FetchMetadata(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestYouTubeProviderOEmbedFallback(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", r.URL.Query().Get("url"))
		_ = json.NewEncoder(w).Encode(map[string]string{"title": "Song", "author_name": "Rick"})
	})
	p := &YouTubeProvider{OEmbedURL: srv.URL}
	md, err := p.FetchMetadata(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "Song", md.Title)
	assert.Equal(t, "Rick", md.Author)
	assert.Zero(t, md.Duration)

	auto, _ := p.AutoplayURL(context.Background(), "dQw4w9WgXcQ")
	assert.Equal(t, "https://www.youtube.com/embed/dQw4w9WgXcQ?autoplay=1", auto)
}

func TestKickClipProvider(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/clips/clip_01ABC" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"clip":{"id":"clip_01ABC","title":"Wow","video_url":"https://kick/video.mp4",
			"thumbnail_url":"https://kick/thumb.jpg","duration":31,"views":7,
			"category":{"name":"Slots"},"channel":{"username":"Streamer","slug":"streamer"}}}`))
	})
	p := &KickClipProvider{BaseURL: srv.URL}
	ctx := context.Background()

	md, err := p.FetchMetadata(ctx, "clip_01ABC")
	require.NoError(t, err)
	assert.Equal(t, "Wow", md.Title)
	assert.Equal(t, "Streamer", md.Author)
	assert.Equal(t, "Slots", md.Category)
	assert.Equal(t, "https://kick.com/streamer/clips/clip_01ABC", md.URL)
	assert.Equal(t, 31, md.Duration)

	auto, err := p.AutoplayURL(ctx, "clip_01ABC")
	require.NoError(t, err)
	assert.Equal(t, "https://kick/video.mp4", auto)

	_, err = p.FetchMetadata(ctx, "clip_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTikTokProvider(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://www.tiktok.com/@_/video/123", r.URL.Query().Get("url"))
		_ = json.NewEncoder(w).Encode(map[string]string{"title": "dance", "author_name": "someone", "thumbnail_url": "https://t/x.jpg"})
	})
	p := &TikTokProvider{OEmbedURL: srv.URL}
	md, err := p.FetchMetadata(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, "dance", md.Title)
	assert.Equal(t, "someone", md.Author)
	_, err = p.AutoplayURL(context.Background(), "123")
	assert.ErrorIs(t, err, ErrAutoplayUnsupported)
}

func TestTwitterProvider(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "42", r.URL.Query().Get("id"))
		assert.NotEmpty(t, r.URL.Query().Get("token"))
		_, _ = w.Write([]byte(`{"text":"look  at\nthis","user":{"name":"Name","screen_name":"handle"},
			"mediaDetails":[{"type":"video","media_url_https":"https://pbs/thumb.jpg","video_info":{"duration_millis":12400,
			"variants":[{"bitrate":256000,"content_type":"video/mp4","url":"https://v/low.mp4"},
			{"content_type":"application/x-mpegURL","url":"https://v/pl.m3u8"},
			{"bitrate":2176000,"content_type":"video/mp4","url":"https://v/high.mp4"}]}}]}`))
	})
	p := &TwitterProvider{SyndicationURL: srv.URL}
	ctx := context.Background()

	md, err := p.FetchMetadata(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "look at this", md.Title)
	assert.Equal(t, "handle", md.Author)
	assert.Equal(t, 12, md.Duration)
	assert.Equal(t, "https://pbs/thumb.jpg", md.ThumbnailURL)

	auto, err := p.AutoplayURL(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "https://v/high.mp4", auto)
}

func TestTwitterProviderOEmbedFallback(t *testing.T) {
	synd := serve(t, func(w http.ResponseWriter, r *http.Request) { http.Error(w, "nope", http.StatusForbidden) })
	oembed := serve(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"author_name": "Name",
			"html":        `<blockquote class="twitter-tweet"><p lang="en">hello <a href="#">world</a></p>&mdash; Name</blockquote>`,
		})
	})
	p := &TwitterProvider{SyndicationURL: synd.URL, OEmbedURL: oembed.URL}
	md, err := p.FetchMetadata(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "hello world", md.Title)
	assert.Equal(t, "Name", md.Author)
}

func TestSyndicationToken(t *testing.T) {
	tok := syndicationToken("1790000000000000000")
	assert.NotEmpty(t, tok)
	assert.NotContains(t, tok, "0")
	assert.NotContains(t, tok, ".")
	assert.Equal(t, "0", syndicationToken("garbage"))
}

func redditListing(post string) string {
	return `[{"data":{"children":[{"data":` + post + `}]}}]`
}

func TestRedditUnwrap(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("raw_json"))
		switch r.URL.Path {
		case "/comments/vid.json":
			_, _ = w.Write([]byte(redditListing(`{"title":"native","author":"op","subreddit_name_prefixed":"r/LSF",
				"permalink":"/r/LSF/comments/vid/native/","created_utc":1700000000,
				"secure_media":{"reddit_video":{"fallback_url":"https://v.redd.it/x/DASH_720.mp4","duration":15}}}`)))
		case "/comments/link.json":
			_, _ = w.Write([]byte(redditListing(`{"title":"link","url_overridden_by_dest":"https://clips.twitch.tv/Slug"}`)))
		case "/comments/self.json":
			_, _ = w.Write([]byte(redditListing(`{"title":"text","is_self":true,"url":"https://www.reddit.com/r/x/comments/self/"}`)))
		default:
			http.NotFound(w, r)
		}
	})
	p := &RedditProvider{BaseURL: srv.URL}
	ctx := context.Background()

	md, out, err := p.Unwrap(ctx, "vid")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, "native", md.Title)
	assert.Equal(t, "r/LSF", md.Category)
	assert.Equal(t, 15, md.Duration)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), md.CreatedAt)
	auto, err := p.AutoplayURL(ctx, "vid")
	require.NoError(t, err)
	assert.Equal(t, "https://v.redd.it/x/DASH_720.mp4", auto)

	md, out, err = p.Unwrap(ctx, "link")
	require.NoError(t, err)
	assert.Nil(t, md)
	assert.Equal(t, "https://clips.twitch.tv/Slug", out)

	_, _, err = p.Unwrap(ctx, "self")
	assert.ErrorIs(t, err, ErrNoMedia)

	_, _, err = p.Unwrap(ctx, "gone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryFollowsRedditLink(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(redditListing(`{"title":"link","url_overridden_by_dest":"https://youtu.be/dQw4w9WgXcQ"}`)))
	})
	r := New(fastOptions(),
		&YouTubeProvider{API: &fakeYouTube{video: &youtubeapi.Video{ID: "dQw4w9WgXcQ", Title: "Song"}}},
		&RedditProvider{BaseURL: srv.URL},
	)
	id, ok := r.ResolveID("https://www.reddit.com/r/videos/comments/abc123/song/")
	require.True(t, ok)
	assert.Equal(t, "reddit:abc123", id)

	md, ok := r.FetchMetadata(context.Background(), id)
	require.True(t, ok)
	assert.Equal(t, "Song", md.Title)

	u, ok := r.GetEmbedURL(context.Background(), id)
	require.True(t, ok)
	assert.Equal(t, "https://www.youtube.com/embed/dQw4w9WgXcQ", u)
}

func TestStreamableProvider(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/videos/abc12", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":2,"title":"","thumbnail_url":"//cdn/thumb.jpg","views":5,
			"files":{"mp4":{"url":"//cdn/abc12.mp4?e=1","duration":9.6}}}`))
	})
	p := &StreamableProvider{BaseURL: srv.URL}
	md, err := p.FetchMetadata(context.Background(), "abc12")
	require.NoError(t, err)
	assert.Equal(t, "abc12", md.Title)
	assert.Equal(t, 10, md.Duration)
	assert.Equal(t, "https://cdn/thumb.jpg", md.ThumbnailURL)

	auto, err := p.AutoplayURL(context.Background(), "abc12")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/abc12.mp4?e=1", auto)
}

func TestInstagramProvider(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/p/C1a2B3c4D5e") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<html><head>
			<meta property="og:title" content="Some Creator on Instagram: &quot;caption text&quot;">
			<meta property="og:image" content="https://ig/thumb.jpg">
			<meta property="og:video" content="https://ig/video.mp4">
			</head><body></body></html>`))
	})
	p := &InstagramProvider{BaseURL: srv.URL}
	ctx := context.Background()

	md, err := p.FetchMetadata(ctx, "C1a2B3c4D5e")
	require.NoError(t, err)
	assert.Equal(t, "caption text", md.Title)
	assert.Equal(t, "Some Creator", md.Author)
	assert.Equal(t, "https://ig/thumb.jpg", md.ThumbnailURL)

	auto, err := p.AutoplayURL(ctx, "C1a2B3c4D5e")
	require.NoError(t, err)
	assert.Equal(t, "https://ig/video.mp4", auto)

	_, err = p.FetchMetadata(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSoopProvider(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		if r.PostForm.Get("nTitleNo") != "123" {
			_, _ = w.Write([]byte(`{"result":-1}`))
			return
		}
		_, _ = w.Write([]byte(`{"result":1,"data":{"full_title":"VOD","writer_nick":"bj","thumb":"//thumb/x.jpg",
			"category_name":"Talk","total_file_duration":61000,"read_cnt":3,"write_tm":"2024-05-01 09:00:00"}}`))
	})
	p := &SoopProvider{APIURL: srv.URL}
	md, err := p.FetchMetadata(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, "VOD", md.Title)
	assert.Equal(t, "bj", md.Author)
	assert.Equal(t, 61, md.Duration)
	assert.Equal(t, "https://thumb/x.jpg", md.ThumbnailURL)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), md.CreatedAt)

	_, err = p.FetchMetadata(context.Background(), "999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetcherStatusErrors(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gone":
			w.WriteHeader(http.StatusGone)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})
	var out any
	err := (fetcher{}).getJSON(context.Background(), srv.URL+"/gone", &out)
	assert.ErrorIs(t, err, ErrNotFound)

	err = (fetcher{}).getJSON(context.Background(), srv.URL+"/busy", &out)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.Status)
	assert.True(t, IsRetryable(err))
}

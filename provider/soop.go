package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/onnwee/clipqueue/queue"
)

const defaultSoopAPI = "https://api.m.sooplive.co.kr/station/video/a/view"

// SoopProvider handles SOOP (formerly AfreecaTV) VOD links.
type SoopProvider struct {
	HTTPClient *http.Client
	APIURL     string
}

func (p *SoopProvider) Name() Name { return Soop }

func (p *SoopProvider) ExtractID(rawURL string) (string, bool) {
	u, ok := parseLink(rawURL)
	if !ok {
		return "", false
	}
	switch u.host {
	case "vod.sooplive.co.kr", "vod.afreecatv.com":
	default:
		return "", false
	}
	if u.seg(0) != "player" || !allMatch(u.seg(1), isDigit) {
		return "", false
	}
	return u.seg(1), true
}

type soopVOD struct {
	FullTitle    string `json:"full_title"`
	Title        string `json:"title"`
	WriterNick   string `json:"writer_nick"`
	BJNick       string `json:"bj_nick"`
	Thumb        string `json:"thumb"`
	Category     string `json:"category_name"`
	DurationMS   int    `json:"total_file_duration"`
	ReadCount    int    `json:"read_cnt"`
	WriteTime    string `json:"write_tm"`
}

func (p *SoopProvider) FetchMetadata(ctx context.Context, id string) (*queue.Metadata, error) {
	api := p.APIURL
	if api == "" {
		api = defaultSoopAPI
	}
	var body struct {
		Result int      `json:"result"`
		Data   *soopVOD `json:"data"`
	}
	form := url.Values{"nTitleNo": {id}, "nApiLevel": {"10"}, "nPlaylistIdx": {"0"}}
	if err := (fetcher{p.HTTPClient}).postFormJSON(ctx, api, form, &body); err != nil {
		return nil, err
	}
	if body.Result != 1 || body.Data == nil {
		return nil, fmt.Errorf("%w: soop vod %s", ErrNotFound, id)
	}
	v := body.Data
	md := &queue.Metadata{
		Title:        v.FullTitle,
		Author:       v.WriterNick,
		Category:     v.Category,
		URL:          "https://vod.sooplive.co.kr/player/" + id,
		ThumbnailURL: httpsURL(v.Thumb),
		Duration:     v.DurationMS / 1000,
		Views:        v.ReadCount,
		Platform:     "soop",
	}
	if md.Title == "" {
		md.Title = v.Title
	}
	if md.Author == "" {
		md.Author = v.BJNick
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", v.WriteTime, kst); err == nil {
		md.CreatedAt = t.UTC()
	}
	return md, nil
}

// kst is Korea Standard Time, the zone of SOOP timestamps.
var kst = time.FixedZone("KST", 9*60*60)

func (p *SoopProvider) WatchURL(_ context.Context, id string) (string, error) {
	return "https://vod.sooplive.co.kr/player/" + id, nil
}

func (p *SoopProvider) EmbedURL(_ context.Context, id string) (string, error) {
	return "https://vod.sooplive.co.kr/player/" + id + "/embed?showChat=false&autoPlay=true&mutePlay=false", nil
}

// AutoplayURL returns the embed player; SOOP streams are HLS behind a session.
func (p *SoopProvider) AutoplayURL(ctx context.Context, id string) (string, error) {
	return p.EmbedURL(ctx, id)
}

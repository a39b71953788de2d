// Package provider turns submitted links into canonical clip ids and describes the media behind
// them.
//
// A canonical id is "<provider>:<localID>". Each Provider recognizes its own URL shapes and knows
// how to fetch metadata and build watch, embed and autoplay URLs for its local ids. The Registry
// holds every provider in a fixed order, filters them by the enabled set, and is the boundary
// where provider errors become absent results.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/onnwee/clipqueue/queue"
)

// Name identifies a provider; it is the prefix of canonical ids.
type Name string

const (
	TwitchClip Name = "twitch-clip"
	TwitchVOD  Name = "twitch-vod"
	YouTube    Name = "youtube"
	KickClip   Name = "kick-clip"
	TikTok     Name = "tiktok"
	Twitter    Name = "twitter"
	Reddit     Name = "reddit"
	Streamable Name = "streamable"
	Instagram  Name = "instagram"
	Soop       Name = "soop"
)

// Known lists every provider in registration order, which is also resolution order.
var Known = []Name{TwitchClip, TwitchVOD, YouTube, KickClip, TikTok, Twitter, Reddit, Streamable, Instagram, Soop}

func knownName(s string) (Name, bool) {
	for _, n := range Known {
		if string(n) == s {
			return n, true
		}
	}
	return "", false
}

var (
	// ErrNotFound means the platform has no media for the id.
	ErrNotFound = errors.New("media not found")
	// ErrAutoplayUnsupported means the platform offers no directly playable URL.
	ErrAutoplayUnsupported = errors.New("autoplay not supported")
	// ErrUnknownProvider means the id prefix names no registered provider.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrNoMedia means a wrapper post carries neither media nor an outbound link.
	ErrNoMedia = errors.New("post has no playable media")
)

// Provider knows one platform.
type Provider interface {
	Name() Name
	// ExtractID returns the local id for a URL this provider recognizes.
	ExtractID(rawURL string) (string, bool)
	FetchMetadata(ctx context.Context, localID string) (*queue.Metadata, error)
	WatchURL(ctx context.Context, localID string) (string, error)
	EmbedURL(ctx context.Context, localID string) (string, error)
	// AutoplayURL returns a directly playable URL. Results may be signed or short-lived and must
	// not be cached.
	AutoplayURL(ctx context.Context, localID string) (string, error)
}

// Wrapper is a provider whose posts may only point at media hosted elsewhere.
type Wrapper interface {
	Provider
	// Unwrap returns the post's own media when it has some, otherwise the outbound link.
	Unwrap(ctx context.Context, localID string) (md *queue.Metadata, outbound string, err error)
}

// JoinID builds a canonical id.
func JoinID(name Name, localID string) string { return string(name) + ":" + localID }

// SplitID splits a canonical id at its first colon.
func SplitID(id string) (Name, string, bool) {
	name, local, ok := strings.Cut(id, ":")
	if !ok || name == "" || local == "" {
		return "", "", false
	}
	return Name(name), local, true
}

// StatusError is a non-2xx response from a platform.
type StatusError struct {
	Status int
	URL    string
}

func (e *StatusError) Error() string { return fmt.Sprintf("GET %s: status %d", e.URL, e.Status) }

// StatusCode returns the HTTP status.
func (e *StatusError) StatusCode() int { return e.Status }

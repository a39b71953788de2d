package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/onnwee/clipqueue/queue"
	"github.com/onnwee/clipqueue/telemetry"
	"github.com/onnwee/clipqueue/twitchapi"
)

// Options tune the Registry.
type Options struct {
	Logger *slog.Logger
	// MaxConcurrent bounds simultaneous metadata fetches (default 4).
	MaxConcurrent int
	// Attempts is the number of tries for retryable errors (default 3).
	Attempts int
	// Backoff is the base retry delay (default 250ms).
	Backoff time.Duration
	// Timeout bounds a shared lookup, which outlives the caller that started it (default 15s).
	Timeout time.Duration
}

// Registry holds every provider in a fixed order and the set currently enabled.
type Registry struct {
	log       *slog.Logger
	providers []Provider
	byName    map[Name]Provider
	sem       *semaphore.Weighted
	attempts  int
	backoff   time.Duration
	timeout   time.Duration
	group     singleflight.Group

	mu        sync.RWMutex
	enabled   map[Name]bool
	redirects map[string]string
}

// New builds a registry over providers, all enabled.
func New(opts Options, providers ...Provider) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 250 * time.Millisecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	r := &Registry{
		log:       opts.Logger.With(slog.String("component", "provider")),
		byName:    map[Name]Provider{},
		sem:       semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		attempts:  opts.Attempts,
		backoff:   opts.Backoff,
		timeout:   opts.Timeout,
		enabled:   map[Name]bool{},
		redirects: map[string]string{},
	}
	for _, p := range providers {
		r.providers = append(r.providers, p)
		r.byName[p.Name()] = p
		r.enabled[p.Name()] = true
	}
	return r
}

// Deps are the collaborators of the production providers.
type Deps struct {
	HTTPClient *http.Client
	// TwitchClientID and TwitchToken authenticate Helix requests. TwitchToken is called for every
	// request and is expected to cache.
	TwitchClientID string
	TwitchToken    twitchapi.TokenGetter
	// TwitchParent is the domain embedding the Twitch player.
	TwitchParent string
	// YouTube is optional; nil falls back to oEmbed.
	YouTube YouTubeLookup
}

// NewDefault builds the registry with every production provider in registration order. The
// Twitch providers describe media through Helix only, so they are left out without a TwitchToken
// and Twitch links do not resolve.
func NewDefault(d Deps, opts Options) *Registry {
	var providers []Provider
	if d.TwitchToken != nil {
		helix := &twitchapi.HelixClient{Tokens: d.TwitchToken, ClientID: d.TwitchClientID, HTTPClient: d.HTTPClient}
		gql := &twitchapi.GQLClient{HTTPClient: d.HTTPClient}
		providers = append(providers,
			&TwitchClipProvider{Helix: helix, Signer: gql, Parent: d.TwitchParent},
			&TwitchVODProvider{Helix: helix, Parent: d.TwitchParent},
		)
	}
	return New(opts, append(providers,
		&YouTubeProvider{API: d.YouTube, HTTPClient: d.HTTPClient},
		&KickClipProvider{HTTPClient: d.HTTPClient},
		&TikTokProvider{HTTPClient: d.HTTPClient},
		&TwitterProvider{HTTPClient: d.HTTPClient},
		&RedditProvider{HTTPClient: d.HTTPClient},
		&StreamableProvider{HTTPClient: d.HTTPClient},
		&InstagramProvider{HTTPClient: d.HTTPClient},
		&SoopProvider{HTTPClient: d.HTTPClient},
	)...)
}

// SetEnabled replaces the enabled set. Names without a registered provider are ignored.
func (r *Registry) SetEnabled(names []Name) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = map[Name]bool{}
	for _, n := range names {
		if _, ok := r.byName[n]; ok {
			r.enabled[n] = true
		}
	}
}

// Enabled returns the enabled names in registration order.
func (r *Registry) Enabled() []Name {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Name, 0, len(r.enabled))
	for _, p := range r.providers {
		if r.enabled[p.Name()] {
			out = append(out, p.Name())
		}
	}
	return out
}

func (r *Registry) enabledProviders() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		if r.enabled[p.Name()] {
			out = append(out, p)
		}
	}
	return out
}

// ResolveID returns the canonical id for a link, trying enabled providers in registration
// order. Wrapper links are claimed first and resolved lazily when their metadata is fetched.
func (r *Registry) ResolveID(rawURL string) (string, bool) {
	return r.resolve(rawURL, "")
}

func (r *Registry) resolve(rawURL string, exclude Name) (string, bool) {
	enabled := r.enabledProviders()
	for _, p := range enabled {
		if _, ok := p.(Wrapper); !ok || p.Name() == exclude {
			continue
		}
		if id, ok := p.ExtractID(rawURL); ok {
			return JoinID(p.Name(), id), true
		}
	}
	for _, p := range enabled {
		if _, ok := p.(Wrapper); ok || p.Name() == exclude {
			continue
		}
		if id, ok := p.ExtractID(rawURL); ok {
			return JoinID(p.Name(), id), true
		}
	}
	return "", false
}

func (r *Registry) lookup(id string) (Provider, string, error) {
	name, local, ok := SplitID(id)
	if !ok {
		return nil, "", fmt.Errorf("%w: malformed id %q", ErrUnknownProvider, id)
	}
	p, ok := r.byName[name]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, local, nil
}

// Redirect returns the memoized target of a wrapper id.
func (r *Registry) Redirect(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.redirects[id]
	return t, ok
}

func (r *Registry) setRedirect(id, target string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redirects[id] = target
}

// FetchMetadata describes the media behind id. Concurrent calls for one id share a single fetch.
// Every failure, including unknown providers, is reported as ok == false.
func (r *Registry) FetchMetadata(ctx context.Context, id string) (*queue.Metadata, bool) {
	v, err := r.shared(ctx, "meta:"+id, func(ctx context.Context) (any, error) {
		return r.fetchMetadata(ctx, id)
	})
	if err != nil {
		r.log.Warn("metadata fetch failed", slog.String("clip_id", id), slog.String("class", ClassifyError(err).String()), slog.Any("err", err))
		return nil, false
	}
	md := *(v.(*queue.Metadata))
	return &md, true
}

// shared runs fn once for all concurrent callers of key. fn gets a context detached from the
// caller and bounded by the registry timeout, so one caller giving up does not fail the others.
func (r *Registry) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := r.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return fn(fctx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Registry) fetchMetadata(ctx context.Context, id string) (md *queue.Metadata, err error) {
	p, local, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer r.sem.Release(1)

	ctx, span := telemetry.StartSpan(ctx, "provider", "provider.fetch_metadata",
		attribute.String("provider", string(p.Name())), attribute.String("clip_id", id))
	defer span.End()
	start := time.Now()
	defer func() {
		telemetry.ObserveMetadataFetch(string(p.Name()), err == nil, time.Since(start))
		telemetry.RecordError(span, err)
	}()

	w, isWrapper := p.(Wrapper)
	if !isWrapper {
		return retry(ctx, r.attempts, r.backoff, "metadata", func(ctx context.Context) (*queue.Metadata, error) {
			return p.FetchMetadata(ctx, local)
		})
	}

	type unwrapped struct {
		md       *queue.Metadata
		outbound string
	}
	u, err := retry(ctx, r.attempts, r.backoff, "unwrap", func(ctx context.Context) (unwrapped, error) {
		md, out, err := w.Unwrap(ctx, local)
		return unwrapped{md, out}, err
	})
	if err != nil {
		return nil, err
	}
	if u.md != nil {
		r.setRedirect(id, id)
		return u.md, nil
	}
	target, ok := r.resolve(u.outbound, p.Name())
	if !ok {
		return nil, fmt.Errorf("%w: %s links to unsupported %s", ErrNoMedia, id, u.outbound)
	}
	tp, tlocal, err := r.lookup(target)
	if err != nil {
		return nil, err
	}
	r.log.Debug("wrapper redirected", slog.String("clip_id", id), slog.String("target", target))
	md, err = retry(ctx, r.attempts, r.backoff, "metadata", func(ctx context.Context) (*queue.Metadata, error) {
		return tp.FetchMetadata(ctx, tlocal)
	})
	if err != nil {
		return nil, err
	}
	r.setRedirect(id, target)
	return md, nil
}

// target returns the provider and local id that actually serve id, following and memoizing
// wrapper redirects.
func (r *Registry) target(ctx context.Context, id string) (Provider, string, error) {
	if t, ok := r.Redirect(id); ok {
		id = t
	} else if p, _, err := r.lookup(id); err == nil {
		if _, isWrapper := p.(Wrapper); isWrapper {
			if _, ok := r.FetchMetadata(ctx, id); ok {
				if t, ok := r.Redirect(id); ok {
					id = t
				}
			}
		}
	}
	return r.lookup(id)
}

// GetURL returns the canonical watch page for id.
func (r *Registry) GetURL(ctx context.Context, id string) (string, bool) {
	p, local, err := r.target(ctx, id)
	if err == nil {
		var u string
		if u, err = p.WatchURL(ctx, local); err == nil {
			return u, true
		}
	}
	r.log.Debug("watch url unavailable", slog.String("clip_id", id), slog.Any("err", err))
	return "", false
}

// GetEmbedURL returns the iframe URL for id.
func (r *Registry) GetEmbedURL(ctx context.Context, id string) (string, bool) {
	p, local, err := r.target(ctx, id)
	if err == nil {
		var u string
		if u, err = p.EmbedURL(ctx, local); err == nil {
			return u, true
		}
	}
	r.log.Debug("embed url unavailable", slog.String("clip_id", id), slog.Any("err", err))
	return "", false
}

// GetAutoplayURL returns a directly playable URL for id. It is resolved on every call because
// platforms sign these URLs with short expiries; only concurrent calls are shared.
func (r *Registry) GetAutoplayURL(ctx context.Context, id string) (string, bool) {
	v, err := r.shared(ctx, "autoplay:"+id, func(ctx context.Context) (any, error) {
		p, local, err := r.target(ctx, id)
		if err != nil {
			return "", err
		}
		return retry(ctx, r.attempts, r.backoff, "autoplay", func(ctx context.Context) (string, error) {
			return p.AutoplayURL(ctx, local)
		})
	})
	if err != nil {
		r.log.Info("autoplay url unavailable", slog.String("clip_id", id), slog.Any("err", err))
		return "", false
	}
	u, _ := v.(string)
	return u, u != ""
}

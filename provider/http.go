package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// UserAgent is sent with every platform request.
const UserAgent = "Mozilla/5.0 (compatible; clipqueue/1.0; +https://github.com/onnwee/clipqueue)"

const maxBody = 4 << 20

// fetcher performs the HTTP requests shared by the providers.
type fetcher struct {
	client *http.Client
}

func (f fetcher) http() *http.Client {
	if f.client != nil {
		return f.client
	}
	return http.DefaultClient
}

func (f fetcher) do(req *http.Request) (io.ReadCloser, error) {
	req.Header.Set("User-Agent", UserAgent)
	resp, err := f.http().Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		closeBody(resp.Body)
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, req.URL.Redacted())
		}
		return nil, &StatusError{Status: resp.StatusCode, URL: req.URL.Redacted()}
	}
	return resp.Body, nil
}

func closeBody(b io.Closer) {
	if err := b.Close(); err != nil {
		slog.Warn("failed to close response body", slog.Any("err", err))
	}
}

// getJSON decodes the JSON body of a GET request into out.
func (f fetcher) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	body, err := f.do(req)
	if err != nil {
		return err
	}
	defer closeBody(body)
	if err := json.NewDecoder(io.LimitReader(body, maxBody)).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Redacted(), err)
	}
	return nil
}

// postFormJSON posts form and decodes the JSON reply into out.
func (f fetcher) postFormJSON(ctx context.Context, rawURL string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	body, err := f.do(req)
	if err != nil {
		return err
	}
	defer closeBody(body)
	if err := json.NewDecoder(io.LimitReader(body, maxBody)).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Redacted(), err)
	}
	return nil
}

// getPage returns the body of an HTML page.
func (f fetcher) getPage(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html")
	return f.do(req)
}

// parsedURL is a submitted link normalized for matching: lower-case host without "www." or
// "m.", and non-empty path segments.
type parsedURL struct {
	host     string
	segments []string
	query    url.Values
}

func parseLink(raw string) (parsedURL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return parsedURL{}, false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return parsedURL{}, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return parsedURL{}, false
	}
	host := strings.ToLower(u.Hostname())
	for _, p := range []string{"www.", "m.", "mobile."} {
		host = strings.TrimPrefix(host, p)
	}
	var segs []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return parsedURL{host: host, segments: segs, query: u.Query()}, true
}

func (p parsedURL) seg(i int) string {
	if i < 0 || i >= len(p.segments) {
		return ""
	}
	return p.segments[i]
}

func httpsURL(u string) string {
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}

func allMatch(s string, ok func(r rune) bool) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !ok(r) {
			return false
		}
	}
	return true
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isSlugRune(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '-' || r == '_'
}

func isBase36(r rune) bool { return isDigit(r) || (r >= 'a' && r <= 'z') }

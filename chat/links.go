package chat

import (
	"net/url"
	"regexp"
	"strings"
)

var linkPattern = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>"]+`)

// ExtractURLs returns the distinct http(s) links in text, in order of appearance. Links written
// without a scheme ("www.example.com/...") get https.
func ExtractURLs(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range linkPattern.FindAllString(text, -1) {
		m = strings.TrimRight(m, ".,;:!?)]}'")
		if strings.HasPrefix(strings.ToLower(m), "www.") {
			m = "https://" + m
		}
		u, err := url.Parse(m)
		if err != nil || u.Host == "" || !strings.Contains(u.Host, ".") {
			continue
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

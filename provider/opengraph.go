package provider

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// openGraph collects <meta property|name=... content=...> pairs from a page head. The first
// occurrence of a key wins.
func openGraph(r io.Reader) (map[string]string, error) {
	doc, err := html.Parse(io.LimitReader(r, maxBody))
	if err != nil {
		return nil, err
	}
	tags := map[string]string{}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "meta" {
			var key, content string
			for _, a := range n.Attr {
				switch strings.ToLower(a.Key) {
				case "property", "name":
					key = strings.ToLower(a.Val)
				case "content":
					content = a.Val
				}
			}
			if key != "" && content != "" {
				if _, seen := tags[key]; !seen {
					tags[key] = content
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return tags, nil
}

// htmlText returns the text inside the first <tag> element of an HTML fragment, or the whole
// fragment's text when tag is empty, with whitespace collapsed.
func htmlText(fragment, tag string) string {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), nil)
	if err != nil {
		return ""
	}
	var find func(n *html.Node) *html.Node
	find = func(n *html.Node) *html.Node {
		if n.Type == html.ElementNode && n.Data == tag {
			return n
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if m := find(c); m != nil {
				return m
			}
		}
		return nil
	}
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		if tag == "" {
			walk(n)
			continue
		}
		if m := find(n); m != nil {
			walk(m)
			break
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

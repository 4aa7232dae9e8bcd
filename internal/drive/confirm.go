package drive

import (
	"bytes"
	"net/url"

	"golang.org/x/net/html"
)

// confirmURL finds the real download link on Drive's "can't scan this file
// for viruses" page. Newer pages carry a form with hidden inputs, older ones
// a plain anchor.
func confirmURL(page []byte, pageURL string) (string, bool) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return "", false
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}

	if form := findByID(doc, "form", "download-form"); form != nil {
		action, err := base.Parse(attr(form, "action"))
		if err != nil {
			return "", false
		}
		q := action.Query()
		walk(form, func(n *html.Node) {
			if n.Data == "input" && attr(n, "type") == "hidden" && attr(n, "name") != "" {
				q.Set(attr(n, "name"), attr(n, "value"))
			}
		})
		action.RawQuery = q.Encode()
		return action.String(), true
	}

	if a := findByID(doc, "a", "uc-download-link"); a != nil {
		if href := attr(a, "href"); href != "" {
			link, err := base.Parse(href)
			if err != nil {
				return "", false
			}
			return link.String(), true
		}
	}
	return "", false
}

func findByID(root *html.Node, tag, id string) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) {
		if found == nil && n.Data == tag && attr(n, "id") == id {
			found = n
		}
	})
	return found
}

// walk visits every element node below n in document order.
func walk(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

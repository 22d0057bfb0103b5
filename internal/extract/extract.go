// Package extract pulls candidate resource URLs out of a rendered page.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page wraps a parsed document and resolves discovered URLs against the
// page's final URL.
type Page struct {
	doc  *goquery.Document
	base *url.URL
}

// Parse builds a Page from rendered HTML. baseURL is the page's final URL
// after redirects; relative resource references resolve against it.
func Parse(html, baseURL string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &Page{doc: doc, base: base}, nil
}

// Title returns the document title. The second return value is false when
// the page has no usable title.
func (p *Page) Title() (string, bool) {
	title := strings.TrimSpace(p.doc.Find("title").First().Text())
	return title, title != ""
}

// ImageSources returns img src and srcset URLs, de-duplicated, in
// document order.
func (p *Page) ImageSources() []string {
	set := newOrderedSet()
	p.doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("src"); ok {
			set.add(p.resolve(src))
		}
		srcset, ok := img.Attr("srcset")
		if !ok {
			return
		}
		for _, candidate := range strings.Split(srcset, ",") {
			candidate = strings.TrimSpace(candidate)
			if candidate == "" {
				continue
			}
			// Each srcset candidate is "<url> <descriptor>".
			set.add(p.resolve(strings.Fields(candidate)[0]))
		}
	})
	return set.values()
}

// MetaContents returns the content attribute of every meta tag. Callers
// filter these down to valid URLs.
func (p *Page) MetaContents() []string {
	set := newOrderedSet()
	p.doc.Find("meta").Each(func(_ int, meta *goquery.Selection) {
		if content, ok := meta.Attr("content"); ok && strings.TrimSpace(content) != "" {
			set.add(strings.TrimSpace(content))
		}
	})
	return set.values()
}

// StylesheetLinks returns the href of every link element, de-duplicated.
func (p *Page) StylesheetLinks() []string {
	set := newOrderedSet()
	p.doc.Find("link").Each(func(_ int, link *goquery.Selection) {
		if href, ok := link.Attr("href"); ok {
			set.add(p.resolve(href))
		}
	})
	return set.values()
}

// ScriptSources returns the src of every script element with one.
func (p *Page) ScriptSources() []string {
	set := newOrderedSet()
	p.doc.Find("script").Each(func(_ int, script *goquery.Selection) {
		if src, ok := script.Attr("src"); ok {
			set.add(p.resolve(src))
		}
	})
	return set.values()
}

// AnchorLinks returns the href of every anchor, de-duplicated and resolved.
func (p *Page) AnchorLinks() []string {
	set := newOrderedSet()
	p.doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		set.add(p.resolve(href))
	})
	return set.values()
}

func (p *Page) resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	resolved := p.base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

// orderedSet keeps first-seen insertion order, skipping blanks.
type orderedSet struct {
	seen map[string]struct{}
	list []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (s *orderedSet) add(v string) {
	if v == "" {
		return
	}
	if _, dup := s.seen[v]; dup {
		return
	}
	s.seen[v] = struct{}{}
	s.list = append(s.list, v)
}

func (s *orderedSet) values() []string {
	return s.list
}

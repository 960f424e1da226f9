// Package extract turns raw page HTML into cleaned text, document links, and
// image references.
package extract

import (
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/prodocs/harvest-cli/internal/model"
)

// HTMLExtractor parses page HTML with a shared markdown converter.
type HTMLExtractor struct {
	converter *md.Converter
}

// NewHTMLExtractor creates an extractor with a default converter.
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{
		converter: md.NewConverter("", true, nil),
	}
}

// CleanText converts page HTML to markdown-flavoured plain text, dropping
// script, style, and navigation noise.
func (e *HTMLExtractor) CleanText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", eris.Wrap(err, "extract: parse html")
	}
	doc.Find("script, style, noscript, nav, footer, iframe").Remove()

	cleaned, err := doc.Html()
	if err != nil {
		return "", eris.Wrap(err, "extract: serialize html")
	}

	text, err := e.converter.ConvertString(cleaned)
	if err != nil {
		return "", eris.Wrap(err, "extract: convert to markdown")
	}
	return strings.TrimSpace(text), nil
}

// FindDocumentLinks returns every anchor on the page with its href resolved
// against the page URL. Anchors with empty or fragment-only hrefs are skipped.
// Classification happens downstream; this stage reports everything.
func (e *HTMLExtractor) FindDocumentLinks(pageURL, html string) ([]model.DocumentLink, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: parse page url %s", pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "extract: parse html")
	}

	var links []model.DocumentLink
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			return
		}

		resolved := resolveRef(base, href)
		if resolved == "" {
			return
		}

		anchor := strings.TrimSpace(s.Text())
		if anchor == "" {
			anchor, _ = s.Attr("title")
			anchor = strings.TrimSpace(anchor)
		}

		links = append(links, model.DocumentLink{
			URL:        resolved,
			AnchorText: anchor,
		})
	})

	return links, nil
}

// FindImages returns every img src on the page resolved against the page URL.
func (e *HTMLExtractor) FindImages(pageURL, html string) ([]model.ImageRef, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: parse page url %s", pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "extract: parse html")
	}

	var images []model.ImageRef
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		src = strings.TrimSpace(src)
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}

		resolved := resolveRef(base, src)
		if resolved == "" {
			return
		}

		alt, _ := s.Attr("alt")
		images = append(images, model.ImageRef{
			URL: resolved,
			Alt: strings.TrimSpace(alt),
		})
	})

	return images, nil
}

// resolveRef resolves a possibly-relative reference against the page base.
func resolveRef(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

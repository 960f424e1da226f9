// Package classify assigns document categories to discovered links by
// anchor-text pattern matching, and derives stable on-disk filenames.
package classify

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/prodocs/harvest-cli/internal/config"
)

// DefaultExtensions is the document extension allow-list.
var DefaultExtensions = []string{".pdf", ".doc", ".docx"}

// DefaultRules returns the built-in category pattern table. Order matters:
// the first category with a matching pattern wins.
func DefaultRules() []config.CategoryRule {
	return []config.CategoryRule{
		{Name: "manual", Patterns: []string{
			`manual`, `guide`, `handbook`, `instructions?`,
			`documentation`, `user\s*guide`, `owner'?s?\s*manual`,
			`quick\s*start`, `reference`, `technical\s*doc`,
		}},
		{Name: "specification", Patterns: []string{
			`specifications?`, `specs?`, `technical\s*specs?`,
			`product\s*specs?`, `data\s*sheet`,
		}},
		{Name: "installation", Patterns: []string{
			`installation`, `setup`, `configure`, `assembly`,
			`mounting`, `install\s*guide`,
		}},
	}
}

type rule struct {
	name     string
	patterns []*regexp.Regexp
}

// Classifier matches anchor text against an ordered category pattern table.
// Classification is a pure function of the input text.
type Classifier struct {
	rules       []rule
	allowedExts map[string]bool
}

// New compiles the given rules. Empty rules or extensions fall back to the
// defaults.
func New(rules []config.CategoryRule, allowedExts []string) (*Classifier, error) {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	if len(allowedExts) == 0 {
		allowedExts = DefaultExtensions
	}

	c := &Classifier{
		allowedExts: make(map[string]bool, len(allowedExts)),
	}
	for _, ext := range allowedExts {
		c.allowedExts[strings.ToLower(ext)] = true
	}

	for _, r := range rules {
		compiled := rule{name: r.Name}
		for _, p := range r.Patterns {
			re, err := regexp.Compile(`(?i)` + p)
			if err != nil {
				return nil, eris.Wrapf(err, "classify: compile pattern %q for %s", p, r.Name)
			}
			compiled.patterns = append(compiled.patterns, re)
		}
		c.rules = append(c.rules, compiled)
	}

	return c, nil
}

// Categories returns the category names in declaration order.
func (c *Classifier) Categories() []string {
	names := make([]string, len(c.rules))
	for i, r := range c.rules {
		names[i] = r.name
	}
	return names
}

// Classify maps anchor text to a category. The first category whose pattern
// set matches any substring wins; declaration order breaks ties.
func (c *Classifier) Classify(anchorText string) (string, bool) {
	for _, r := range c.rules {
		for _, re := range r.patterns {
			if re.MatchString(anchorText) {
				return r.name, true
			}
		}
	}
	return "", false
}

// AllowedURL reports whether the URL's path extension is in the allow-list.
// This gate runs before classification, regardless of anchor text.
func (c *Classifier) AllowedURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	return c.allowedExts[ext]
}

var invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
var whitespaceRun = regexp.MustCompile(`\s+`)

// CleanFilename strips invalid filesystem characters, collapses whitespace to
// underscores, and lowercases.
func CleanFilename(name string) string {
	name = invalidFilenameChars.ReplaceAllString(name, "")
	name = whitespaceRun.ReplaceAllString(strings.TrimSpace(name), "_")
	return strings.ToLower(name)
}

// StoredFilename derives the on-disk name for a document link: the cleaned
// anchor text plus a short URL hash, so names stay stable and unique under
// concurrent writers fetching different URLs with identical titles.
func StoredFilename(title, rawURL string) string {
	base := CleanFilename(title)
	if base == "" {
		base = "document"
	}

	ext := ""
	if u, err := url.Parse(rawURL); err == nil {
		ext = strings.ToLower(path.Ext(u.Path))
	}
	if ext == "" {
		ext = ".pdf"
	}

	return base + "_" + shortHash(rawURL) + ext
}

// ImageFilename derives the on-disk name for an image reference.
func ImageFilename(rawURL string) string {
	ext := ""
	if u, err := url.Parse(rawURL); err == nil {
		ext = strings.ToLower(path.Ext(u.Path))
	}
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".svg", ".gif":
	default:
		ext = ".jpg"
	}
	return "img_" + shortHash(rawURL) + ext
}

// SiteHash returns a short stable hash of the URL's host, used to partition
// the download tree per site.
func SiteHash(rawURL string) string {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return shortHash(host)
}

func shortHash(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:8]
}

package scrape

import (
	"net/http"
	"strings"
)

// BlockType describes why a page is unusable for extraction.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockWAF        BlockType = "waf"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
	BlockEmpty      BlockType = "empty"
)

// DetectBlock decides whether a fetched page is worth handing to the
// extractor. Anti-bot challenges, captcha walls, JS-only shells, and bodies
// below minContentBytes all count as blocked; each of these renders fine in a
// real browser, which is what makes the headless fallback worth trying.
func DetectBlock(resp *http.Response, body []byte, minContentBytes int) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}

	// Cloudflare: 403/503 with cf-* headers.
	if resp.StatusCode == 403 || resp.StatusCode == 503 {
		if resp.Header.Get("cf-ray") != "" || resp.Header.Get("cf-cache-status") != "" {
			return true, BlockCloudflare
		}
		if resp.Header.Get("server") == "cloudflare" {
			return true, BlockCloudflare
		}
	}

	lower := strings.ToLower(string(body))

	// Cloudflare challenge page markers.
	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge") {
		return true, BlockCloudflare
	}

	// Akamai/PerimeterX walls, common on manufacturer product sites.
	if strings.Contains(lower, "pardon our interruption") ||
		strings.Contains(lower, "request unsuccessful. incapsula") ||
		(resp.StatusCode == 403 && strings.Contains(lower, "access denied") &&
			strings.Contains(lower, "reference #")) {
		return true, BlockWAF
	}

	// Captcha markers.
	if strings.Contains(lower, "captcha") ||
		strings.Contains(lower, "recaptcha") ||
		strings.Contains(lower, "hcaptcha") {
		return true, BlockCaptcha
	}

	// JS-only shell: very small body with noscript or meta refresh. These
	// pages render nothing without a browser.
	if len(body) < 2000 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, "meta http-equiv=\"refresh\"") {
			return true, BlockJSShell
		}
	}

	// A near-empty 200 usually means client-side rendering.
	if len(body) < minContentBytes {
		return true, BlockEmpty
	}

	return false, BlockNone
}

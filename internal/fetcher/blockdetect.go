package fetcher

import (
	"net/http"
	"strings"
)

// BlockKind describes the anti-bot protection that intercepted a page.
type BlockKind string

const (
	BlockNone       BlockKind = ""
	BlockCloudflare BlockKind = "cloudflare"
	BlockCaptcha    BlockKind = "captcha"
	BlockJSShell    BlockKind = "js_shell"
)

// DetectBlock inspects a listing response for anti-bot interception.
// Blocked responses are transient from the fetcher's point of view: the
// gateway rotates its exit identity between attempts, so a retry can land.
func DetectBlock(resp *http.Response, body []byte) (BlockKind, bool) {
	if resp == nil {
		return BlockNone, false
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		if resp.Header.Get("cf-ray") != "" ||
			resp.Header.Get("cf-cache-status") != "" ||
			strings.EqualFold(resp.Header.Get("server"), "cloudflare") {
			return BlockCloudflare, true
		}
	}

	lower := strings.ToLower(string(body))

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		(strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge")) {
		return BlockCloudflare, true
	}

	if strings.Contains(lower, "captcha") {
		return BlockCaptcha, true
	}

	// A tiny JS-only shell means the listing never rendered server-side.
	if len(body) < 2048 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return BlockJSShell, true
		}
		if strings.Contains(lower, `meta http-equiv="refresh"`) {
			return BlockJSShell, true
		}
	}

	return BlockNone, false
}

package catalog

import (
	"net/url"
	"path"
	"strings"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

// Hosts that serve images without a recognisable extension
var imageHosts = []string{
	"cjdropshipping.com",
	"alicdn.com",
	"cloudfront.net",
	"shopifycdn.com",
	"cdn.shopify.com",
}

var placeholderMarkers = []string{
	"placeholder",
	"no-image",
	"noimage",
	"no_image",
	"default-image",
	"blank.",
	"spacer",
	"1x1",
	"transparent.",
}

// IsValidImage accepts https URLs with an image extension or a known CDN
// host, and rejects blank and placeholder images.
func IsValidImage(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return false
	}

	lower := strings.ToLower(u.Host + u.Path)
	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}

	if imageExtensions[strings.ToLower(path.Ext(u.Path))] {
		return true
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range imageHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// Gallery keeps up to four valid images other than the main one
func Gallery(main string, candidates []string) []string {
	out := make([]string, 0, 4)
	seen := map[string]bool{main: true}
	for _, c := range candidates {
		if len(out) == 4 {
			break
		}
		if seen[c] || !IsValidImage(c) {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

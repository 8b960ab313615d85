package encoder

import "strings"

// IDPlaceholder is the literal token substituted with the generated
// intent id in redirect URLs.
const IDPlaceholder = "${id}"

// RedirectURL resolves the redirect URL for a newly created intent.
// When the caller supplied a custom URL it is used as-is; otherwise the
// per-type default path is appended to the configured base URL. The
// placeholder substitution happens exactly once, at creation; the stored
// URL is immutable afterwards.
func RedirectURL(baseURL, customURL, defaultPath, id string) string {
	url := customURL
	if url == "" {
		url = baseURL + defaultPath
	}
	return strings.ReplaceAll(url, IDPlaceholder, id)
}

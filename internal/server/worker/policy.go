package worker

import (
	"net/http"
	"net/url"
	"path"
	"strings"
)

const (
	ShellDocument       = "index.html"
	MobileShellDocument = "mobile/index.html"
)

// isNavigation reports whether req loads a page: the fetch mode says so, or
// it is a GET asking for an HTML document.
func isNavigation(req *http.Request) bool {
	if req.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return req.Method == http.MethodGet && strings.Contains(req.Header.Get("Accept"), "text/html")
}

// isMobilePath reports whether p belongs to the mobile shell: it has a
// "mobile" segment, or its last segment starts with "mobile".
func isMobilePath(p string) bool {
	if strings.Contains(p, "/mobile/") {
		return true
	}
	return strings.HasPrefix(path.Base(p), "mobile")
}

func shellFor(p string) string {
	if isMobilePath(p) {
		return MobileShellDocument
	}
	return ShellDocument
}

func isHTTPScheme(u *url.URL) bool {
	return u.Scheme == "http" || u.Scheme == "https"
}

func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(hostPort(a), hostPort(b))
}

// hostPort makes the scheme's default port explicit.
func hostPort(u *url.URL) string {
	if u.Port() != "" {
		return u.Host
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		return u.Hostname() + ":80"
	case "https":
		return u.Hostname() + ":443"
	}
	return u.Host
}

// cacheKey is the request URL without its fragment.
func cacheKey(u *url.URL) string {
	cp := *u
	cp.Fragment = ""
	cp.RawFragment = ""
	return cp.String()
}

// forceNetwork returns a copy of req that HTTP caches on the way must not
// answer from storage. The copy is suitable for an http.Client.
func forceNetwork(req *http.Request) *http.Request {
	out := outbound(req)
	out.Header.Set("Cache-Control", "no-cache")
	out.Header.Set("Pragma", "no-cache")
	return out
}

// outbound turns a (possibly server-side) request into a client request.
func outbound(req *http.Request) *http.Request {
	out := req.Clone(req.Context())
	out.RequestURI = ""
	out.Host = ""
	return out
}

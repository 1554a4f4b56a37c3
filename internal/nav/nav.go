package nav

import (
	"net/url"
	"path"
	"strings"
	"unicode"
)

// Item is a fixed navigation link rendered regardless of content.
type Item struct {
	Key   string
	Path  string
	Label string
}

// Static links shown in the header before and after the content-driven sections.
var (
	Home     = Item{Key: "home", Path: "/", Label: "Home"}
	AllPosts = Item{Key: "all-posts", Path: "/posts", Label: "All Posts"}
)

// RegionsSegment prefixes every region listing path.
const RegionsSegment = "regions"

// RegionPath returns the listing path for a region slug.
func RegionPath(slug string) string {
	return "/" + RegionsSegment + "/" + strings.Trim(slug, "/")
}

// PagePath returns the root-level path for a page slug.
func PagePath(slug string) string {
	return "/" + strings.Trim(slug, "/")
}

// IsActive reports whether itemPath should be highlighted for currentPath.
// The home path only matches itself; others match exactly or at a segment boundary.
func IsActive(itemPath, currentPath string) bool {
	currentPath = Clean(currentPath)
	if itemPath == "/" {
		return currentPath == "/"
	}
	if currentPath == itemPath {
		return true
	}
	return strings.HasPrefix(currentPath, itemPath+"/")
}

// Clean normalises a request path for comparisons.
func Clean(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// IsLocalPath reports whether target is a same-origin absolute path that is
// safe to redirect to. Browsers drop tabs and newlines from URLs and treat a
// backslash like a slash, so any control character, whitespace or backslash
// is rejected before the scheme and host checks.
func IsLocalPath(target string) bool {
	if target == "" || !strings.HasPrefix(target, "/") {
		return false
	}
	if strings.IndexFunc(target, func(r rune) bool {
		return unicode.IsControl(r) || unicode.IsSpace(r) || r == '\\'
	}) >= 0 {
		return false
	}
	if strings.HasPrefix(target, "//") {
		return false
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == "" && u.User == nil && strings.HasPrefix(u.Path, "/") && !strings.HasPrefix(u.Path, "//")
}

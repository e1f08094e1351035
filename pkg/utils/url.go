package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashURL creates a SHA256 hash of a URL string.
// Used as a stable key when publishing release events.
func HashURL(rawURL string) string {
	h := sha256.New()
	h.Write([]byte(rawURL))
	return hex.EncodeToString(h.Sum(nil))
}

// TrailingSegment returns everything after the final "/" of a path.
// "/deadbeef/abcdefg" yields "abcdefg"; a path without "/" is returned as is.
func TrailingSegment(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// ResourceURL joins an asset host and a resource path without doubling or
// dropping the separating slash.
func ResourceURL(host, resourcePath string) string {
	host = strings.TrimRight(host, "/")
	if !strings.HasPrefix(resourcePath, "/") {
		resourcePath = "/" + resourcePath
	}
	return host + resourcePath
}

// AssetURL is the fully-qualified URL of a named file inside a resource path.
func AssetURL(host, resourcePath, name string) string {
	return strings.TrimRight(ResourceURL(host, resourcePath), "/") + "/" + name
}

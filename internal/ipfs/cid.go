package ipfs

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	pathMarker   = "ipfs/"
	schemePrefix = "ipfs://"
)

var bareCID = regexp.MustCompile(`^[a-zA-Z0-9]{46}$`)

// Resolve maps a stored image reference to its content identifier.
// Gateway URLs and ipfs:// URIs are reduced to the identifier; anything else,
// bare identifiers and direct URLs alike, comes back unchanged.
func Resolve(ref string) string {
	if ref == "" {
		return ""
	}
	if i := strings.LastIndex(ref, pathMarker); i >= 0 {
		return ref[i+len(pathMarker):]
	}
	if strings.HasPrefix(ref, schemePrefix) {
		return strings.TrimPrefix(ref, schemePrefix)
	}
	return ref
}

// IsBareCID reports whether ref already is a 46 character identifier.
func IsBareCID(ref string) bool {
	return bareCID.MatchString(ref)
}

// IsContentRef reports whether ref points at content-addressed data rather
// than an arbitrary URL.
func IsContentRef(ref string) bool {
	return strings.Contains(ref, pathMarker) || strings.HasPrefix(ref, schemePrefix) || IsBareCID(ref)
}

// GatewayURL returns the display URL for ref on the given gateway. Direct URLs
// that do not carry an identifier are returned verbatim.
func GatewayURL(gateway, ref string) string {
	if ref == "" {
		return ""
	}
	if !IsContentRef(ref) || gateway == "" {
		return ref
	}
	base := strings.TrimRight(gateway, "/")
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	return fmt.Sprintf("%s/ipfs/%s", base, Resolve(ref))
}

// URI formats a content identifier as an ipfs:// reference for on-chain storage.
func URI(cid string) string {
	return schemePrefix + cid
}

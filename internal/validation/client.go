package validation

import (
	"net/url"
	"regexp"
)

var clientIDRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

// ValidClientID: 1..128 chars, alfanumérico más "_", "." y "-".
func ValidClientID(id string) bool {
	return clientIDRe.MatchString(id)
}

// ValidRedirectURI exige URI absoluta con scheme y host y sin fragmento
// (RFC 6749 §3.1.2). Se acepta http solo para loopback.
func ValidRedirectURI(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" || u.Fragment != "" || u.User != nil {
		return false
	}
	switch u.Scheme {
	case "https":
		return true
	case "http":
		h := u.Hostname()
		return h == "localhost" || h == "127.0.0.1" || h == "::1"
	default:
		return false
	}
}

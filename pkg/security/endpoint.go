package security

import (
	"net/netip"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// EndpointPolicy says which service endpoints may be called.
type EndpointPolicy struct {
	// AllowHTTP permits plain HTTP. HTTPS is always allowed.
	AllowHTTP bool
	// AllowLocalNetworks permits localhost and loopback, private or link-local addresses.
	AllowLocalNetworks bool
}

var (
	// LocalServicePolicy fits a chat client talking to a service on the same machine or LAN.
	LocalServicePolicy = EndpointPolicy{AllowHTTP: true, AllowLocalNetworks: true}
	// HostedAPIPolicy fits a hosted model API.
	HostedAPIPolicy = EndpointPolicy{}
)

// ValidateEndpoint checks rawURL against policy. IP literals are checked
// without DNS lookups; hostnames other than localhost are not resolved.
func ValidateEndpoint(rawURL string, policy EndpointPolicy) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrapf(err, "invalid endpoint %q", rawURL)
	}

	switch parsed.Scheme {
	case "https":
	case "http":
		if !policy.AllowHTTP {
			return errors.Errorf("endpoint %q: http is not allowed, use https", rawURL)
		}
	default:
		return errors.Errorf("endpoint %q: unsupported scheme %q", rawURL, parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return errors.Errorf("endpoint %q has no host", rawURL)
	}

	if !policy.AllowLocalNetworks && isLocalHostname(host) {
		return errors.Errorf("endpoint %q: local host %q is not allowed", rawURL, host)
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil
	}
	if addr.Zone() != "" && !policy.AllowLocalNetworks {
		return errors.Errorf("endpoint %q: zoned address is not allowed", rawURL)
	}
	addr = addr.Unmap()
	if addr.IsUnspecified() || addr.IsMulticast() {
		return errors.Errorf("endpoint %q: address %s cannot be called", rawURL, addr)
	}
	if !policy.AllowLocalNetworks && isLocalAddr(addr) {
		return errors.Errorf("endpoint %q: local network address %s is not allowed", rawURL, addr)
	}

	return nil
}

func isLocalHostname(host string) bool {
	return host == "localhost" ||
		strings.HasSuffix(host, ".localhost") ||
		strings.HasSuffix(host, ".local")
}

func isLocalAddr(addr netip.Addr) bool {
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast()
}

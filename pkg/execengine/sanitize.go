package execengine

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
)

// hostnameRegex accepts RFC 1123-ish hostnames: labels of letters, digits,
// and hyphens, separated by dots.
var hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// validateTarget rejects targets that are syntactically invalid, or that
// resolve to loopback/link-local/private address space when the tool's
// descriptor has allow_private=false. It never performs DNS resolution —
// only literal IPs embedded in the target string are range-checked, since
// resolving untrusted hostnames here would itself be a network side effect
// the engine should not perform ahead of the tool it is about to invoke.
func validateTarget(target string, allowPrivate bool) error {
	if target == "" {
		return fmt.Errorf("%w: empty target", ErrInvalidTarget)
	}

	host := target
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		host = u.Hostname()
	}

	if ip := net.ParseIP(host); ip != nil {
		if !allowPrivate && isDisallowedIP(ip) {
			return fmt.Errorf("%w: %s is in a disallowed address range", ErrInvalidTarget, host)
		}
		return nil
	}

	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("%w: %q is not a valid hostname, IP, or URL", ErrInvalidTarget, target)
	}
	return nil
}

func isDisallowedIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsPrivate()
}

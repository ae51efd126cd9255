// Package safeurl vets page URLs before Chrome is pointed at them and caps
// what is read back from remote services.
package safeurl

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
)

var (
	// ErrScheme is returned for anything but http and https.
	ErrScheme = errors.New("safeurl: only http and https are allowed")
	// ErrNoHost is returned when the URL has no host name.
	ErrNoHost = errors.New("safeurl: url has no host")
	// ErrPrivate is returned when the host is, or resolves to, a loopback,
	// link-local or private address.
	ErrPrivate = errors.New("safeurl: url targets a private or loopback address")
	// ErrTooLarge is returned by ReadLimited when the body exceeds the cap.
	ErrTooLarge = errors.New("safeurl: body too large")
)

// Resolver looks up the addresses of a host. net.LookupHost satisfies it.
type Resolver func(host string) ([]string, error)

// Check parses raw and validates its scheme and host. Unless allowPrivate is
// set, a host that is or resolves to a non-public address is refused. A
// failed lookup lets the URL through; navigation will fail on its own.
func Check(raw string, allowPrivate bool) (*url.URL, error) {
	return check(raw, allowPrivate, net.LookupHost)
}

func check(raw string, allowPrivate bool, lookup Resolver) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("safeurl: parse: %w", err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrScheme
	}
	host := u.Hostname()
	if host == "" {
		return nil, ErrNoHost
	}
	if allowPrivate {
		return u, nil
	}

	if ip := net.ParseIP(host); ip != nil {
		if private(ip) {
			return nil, ErrPrivate
		}
		return u, nil
	}
	if strings.EqualFold(host, "localhost") {
		return nil, ErrPrivate
	}
	addrs, err := lookup(host)
	if err != nil {
		return u, nil
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && private(ip) {
			return nil, ErrPrivate
		}
	}
	return u, nil
}

// ReadLimited reads r to the end, failing with ErrTooLarge past max bytes.
func ReadLimited(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%w: over %d bytes", ErrTooLarge, max)
	}
	return data, nil
}

func private(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
}

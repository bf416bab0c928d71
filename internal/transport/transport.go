// Package transport resolves a target URI into a net.Listener or a
// gRPC-compatible dialer (spec §6.3 "Service transports supported at the
// boundary: TCP, local socket, and local VM socket"). Three schemes are
// recognized: http:// (TCP), file:// (Unix domain socket), and vsock://
// (Linux VM sockets, mirroring the teacher-adjacent example repo's
// transport_unix.go/transport_windows.go platform-gated file split). A
// bare host:port with no scheme (the config default) is treated as TCP.
package transport

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/asyncwatch/console/internal/errs"
)

// Listen returns a net.Listener bound to the address encoded in uri.
func Listen(uri string) (net.Listener, error) {
	scheme, addr, err := split(uri)
	if err != nil {
		return nil, err
	}
	switch scheme {
	case "http", "tcp":
		l, err := net.Listen("tcp", addr)
		return l, errs.Wrapf(err, "listen tcp %s", addr)
	case "file", "unix":
		return listenUnix(addr)
	case "vsock":
		cid, port, err := parseVsockAddr(addr)
		if err != nil {
			return nil, err
		}
		return listenVsock(cid, port)
	default:
		return nil, errs.Newf("transport: unsupported scheme %q", scheme)
	}
}

// Dialer returns a grpc.WithContextDialer-compatible function that
// connects to the address encoded in uri, regardless of scheme. The
// returned function ignores its addr argument in favor of the
// originally resolved one, matching how grpc.Dial's target string is
// used only for name resolution when a custom dialer is supplied.
func Dialer(uri string) (func(ctx context.Context, addr string) (net.Conn, error), error) {
	scheme, addr, err := split(uri)
	if err != nil {
		return nil, err
	}
	switch scheme {
	case "http", "tcp":
		var d net.Dialer
		return func(ctx context.Context, _ string) (net.Conn, error) {
			return d.DialContext(ctx, "tcp", addr)
		}, nil
	case "file", "unix":
		var d net.Dialer
		return func(ctx context.Context, _ string) (net.Conn, error) {
			return d.DialContext(ctx, "unix", addr)
		}, nil
	case "vsock":
		cid, port, err := parseVsockAddr(addr)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, _ string) (net.Conn, error) {
			return dialVsock(ctx, cid, port)
		}, nil
	default:
		return nil, errs.Newf("transport: unsupported scheme %q", scheme)
	}
}

// split parses uri into a scheme and a scheme-specific address string
// suitable for net.Listen/net.Dial (for file://, the filesystem path;
// for http:// and vsock://, the host:port-shaped authority). A bare
// host:port with a numeric port resolves to tcp.
func split(uri string) (scheme, addr string, err error) {
	if !strings.Contains(uri, "://") {
		if _, port, perr := net.SplitHostPort(uri); perr == nil {
			if _, perr := strconv.ParseUint(port, 10, 16); perr == nil {
				return "tcp", uri, nil
			}
		}
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", errs.Wrapf(err, "parse transport uri %q", uri)
	}
	switch u.Scheme {
	case "file", "unix":
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		if path == "" {
			return "", "", errs.Newf("transport: %q has no socket path", uri)
		}
		return u.Scheme, path, nil
	case "http", "tcp", "vsock":
		authority := u.Host
		if authority == "" {
			authority = u.Opaque
		}
		if authority == "" {
			return "", "", errs.Newf("transport: %q has no address", uri)
		}
		return u.Scheme, authority, nil
	default:
		return "", "", errs.Newf("transport: unrecognized uri %q", uri)
	}
}

func parseVsockAddr(addr string) (cid, port uint32, err error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, 0, errs.Wrapf(err, "parse vsock address %q (want cid:port)", addr)
	}
	p, err := strconv.ParseUint(portStr, 10, 32)
	if err != nil {
		return 0, 0, errs.Wrapf(err, "parse vsock port %q", portStr)
	}
	if strings.EqualFold(host, "any") {
		return vsockCIDAny, uint32(p), nil
	}
	c, err := strconv.ParseUint(host, 10, 32)
	if err != nil {
		return 0, 0, errs.Wrapf(err, "parse vsock cid %q", host)
	}
	return uint32(c), uint32(p), nil
}

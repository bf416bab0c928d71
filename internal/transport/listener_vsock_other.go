//go:build !linux

package transport

import (
	"context"
	"net"

	"github.com/asyncwatch/console/internal/errs"
)

// vsockCIDAny has no real meaning off Linux; kept so split/parseVsockAddr
// compiles identically on every platform.
const vsockCIDAny = 0xffffffff

func listenVsock(cid, port uint32) (net.Listener, error) {
	return nil, errs.New("transport: vsock is not supported on this platform")
}

func dialVsock(ctx context.Context, cid, port uint32) (net.Conn, error) {
	return nil, errs.New("transport: vsock is not supported on this platform")
}

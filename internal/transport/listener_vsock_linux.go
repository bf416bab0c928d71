//go:build linux

package transport

import (
	"context"
	"net"
	"os"

	"golang.org/x/sys/unix"

	"github.com/asyncwatch/console/internal/errs"
)

// vsockCIDAny is VMADDR_CID_ANY: bind to any context id (accept
// connections from any VM on the host).
const vsockCIDAny = unix.VMADDR_CID_ANY

// listenVsock binds an AF_VSOCK socket and wraps it as a net.Listener
// via net.FileListener, so callers downstream (the gRPC server) need no
// AF_VSOCK-specific code path.
func listenVsock(cid, port uint32) (net.Listener, error) {
	fd, err := unix.Socket(unix.AF_VSOCK, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, errs.Wrap(err, "create vsock socket")
	}
	sa := &unix.SockaddrVM{CID: cid, Port: port}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, errs.Wrapf(err, "bind vsock %d:%d", cid, port)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return nil, errs.Wrapf(err, "listen vsock %d:%d", cid, port)
	}
	f := os.NewFile(uintptr(fd), "vsock-listener")
	l, err := net.FileListener(f)
	f.Close()
	if err != nil {
		return nil, errs.Wrap(err, "wrap vsock listener")
	}
	return l, nil
}

// dialVsock connects to an AF_VSOCK address and wraps the resulting
// socket as a net.Conn via net.FileConn.
func dialVsock(ctx context.Context, cid, port uint32) (net.Conn, error) {
	fd, err := unix.Socket(unix.AF_VSOCK, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, errs.Wrap(err, "create vsock socket")
	}
	sa := &unix.SockaddrVM{CID: cid, Port: port}

	done := make(chan error, 1)
	go func() { done <- unix.Connect(fd, sa) }()

	select {
	case err := <-done:
		if err != nil {
			unix.Close(fd)
			return nil, errs.Wrapf(err, "connect vsock %d:%d", cid, port)
		}
	case <-ctx.Done():
		unix.Close(fd)
		return nil, ctx.Err()
	}

	f := os.NewFile(uintptr(fd), "vsock-conn")
	c, err := net.FileConn(f)
	f.Close()
	if err != nil {
		return nil, errs.Wrap(err, "wrap vsock connection")
	}
	return c, nil
}

package transport

import (
	"net"
	"os"

	"github.com/asyncwatch/console/internal/errs"
)

// listenUnix binds a Unix domain socket at path, removing a stale
// socket file left behind by a prior unclean shutdown first.
func listenUnix(path string) (net.Listener, error) {
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	l, err := net.Listen("unix", path)
	return l, errs.Wrapf(err, "listen unix socket %s", path)
}

//go:build unix

package transport

import "golang.org/x/sys/unix"

var disconnectErrnos = []error{
	unix.EPIPE,
	unix.ECONNRESET,
	unix.ENOTCONN,
}

// The same set net/http retries on after Accept.
var transientErrnos = []error{
	unix.ECONNABORTED,
	unix.EINTR,
	unix.EMFILE,
	unix.ENFILE,
	unix.ENOBUFS,
	unix.ENOMEM,
}

var addrInUseErrno error = unix.EADDRINUSE

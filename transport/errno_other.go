//go:build !unix && !windows

package transport

import "syscall"

var disconnectErrnos = []error{syscall.EPIPE, syscall.ECONNRESET}

var transientErrnos []error

var addrInUseErrno error = syscall.EADDRINUSE

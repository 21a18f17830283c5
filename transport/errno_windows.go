//go:build windows

package transport

import (
	"syscall"

	"golang.org/x/sys/windows"
)

var disconnectErrnos = []error{
	windows.ERROR_PIPE_NOT_CONNECTED,
	windows.ERROR_BROKEN_PIPE,
	windows.ERROR_NO_DATA,
	windows.ERROR_NETNAME_DELETED,
	windows.WSAECONNRESET,
	windows.WSAECONNABORTED,
}

var transientErrnos = []error{
	windows.ERROR_OPERATION_ABORTED,
	windows.ERROR_NOT_ENOUGH_MEMORY,
}

// WSAEADDRINUSE; x/sys/windows does not export it.
var addrInUseErrno error = syscall.Errno(10048)

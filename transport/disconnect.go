package transport

import (
	"errors"
	"strings"
	"time"
)

// PipeDisconnectSignature is the message Windows attaches to
// ERROR_PIPE_NOT_CONNECTED, raised when a named-pipe client goes away while
// the server is still reading or writing.
const PipeDisconnectSignature = "No process is on the other end of the pipe"

// disconnectSignatures are matched against error and panic text when no
// errno is available, for example after an error has been flattened to a
// string by a lower layer.
var disconnectSignatures = []string{
	PipeDisconnectSignature,
	"The pipe is being closed",
	"The pipe has been ended",
	"broken pipe",
	"connection reset by peer",
}

// IsDisconnect reports whether err means the peer went away. Such errors end
// a connection cleanly and are not logged as failures.
func IsDisconnect(err error) bool {
	if err == nil {
		return false
	}
	for _, errno := range disconnectErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}
	return containsSignature(err.Error())
}

// IsDisconnectPanic reports whether a recovered panic value carries the peer
// disconnection signature. Anything else must keep propagating.
func IsDisconnectPanic(v any) bool {
	switch p := v.(type) {
	case error:
		return IsDisconnect(p)
	case string:
		return containsSignature(p)
	default:
		return false
	}
}

// IsTransient reports whether an Accept error concerns only the connection
// being accepted (or a momentary resource shortage), so the listener remains
// usable and the accept loop should continue.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsDisconnect(err) {
		return true
	}
	for _, errno := range transientErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}
	var te interface{ Timeout() bool }
	if errors.As(err, &te) && te.Timeout() {
		return true
	}
	return false
}

// TransientBackoff is how long the accept loop pauses after a transient error.
const TransientBackoff = 100 * time.Millisecond

func containsSignature(s string) bool {
	for _, sig := range disconnectSignatures {
		if strings.Contains(s, sig) {
			return true
		}
	}
	return false
}

func isAddrInUse(err error) bool {
	return errors.Is(err, addrInUseErrno)
}

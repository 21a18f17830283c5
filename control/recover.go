package control

import (
	"fmt"
	"log/slog"

	"github.com/zhubert/appctl/transport"
)

// recoverDisconnect must be deferred directly at the top of every goroutine
// the server spawns. A panic carrying the peer-disconnect signature is logged
// and swallowed, which ends only that goroutine. Any other panic is re-raised.
func recoverDisconnect(log *slog.Logger) {
	r := recover()
	if r == nil {
		return
	}
	if transport.IsDisconnectPanic(r) {
		log.Info("peer disconnected during I/O", "panic", fmt.Sprint(r))
		return
	}
	panic(r)
}

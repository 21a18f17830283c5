// Package control implements the command server that external automation
// clients connect to.
//
// A Server listens on one transport (a local socket or TCP), accepts any
// number of clients, and for each line-delimited JSON request calls the
// configured CommandHandler and writes back exactly one response line.
// Requests on one connection are handled strictly in order; connections are
// independent of each other.
//
// Lifecycle:
//
//	srv := control.New(config.Local(""), handler)
//	if err := srv.Start(); err != nil {
//		// *transport.BindError when the address is taken
//	}
//	...
//	srv.Stop()          // stop accepting; existing clients keep being served
//	srv.Wait(ctx)       // optionally wait for them to disconnect
//
// Client is the matching dialer used by the appctl CLI and by tests.
package control

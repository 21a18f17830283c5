// appctl runs and talks to the application control server.
package main

import "github.com/zhubert/appctl/cli"

// Build-time variables set via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	cli.Execute(Version, Commit)
}

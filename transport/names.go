package transport

import "strings"

const pipePrefix = `\\.\pipe\`

// PipeName maps a configured local socket path onto the Windows named-pipe
// namespace. A name already in that namespace is returned unchanged; anything
// else keeps only its final path element, since pipe names cannot contain
// further backslashes.
func PipeName(path string) string {
	if strings.HasPrefix(strings.ToLower(path), pipePrefix) {
		return path
	}
	base := path
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if base == "" {
		base = "appctl.sock"
	}
	return pipePrefix + base
}

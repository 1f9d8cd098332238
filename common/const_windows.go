//go:build windows

package common

import (
	"os"
	"strings"
)

// DefaultPipeName is the default name for the Windows named pipe.
const DefaultPipeName = "grab"

// PipePath returns the Windows named pipe path for the daemon. A
// GRAB_PIPE_NAME value carrying the \\.\pipe\ prefix is used as-is,
// otherwise the prefix is prepended.
func PipePath() string {
	if name := os.Getenv(PipeNameEnv); name != "" {
		if strings.HasPrefix(name, `\\.\pipe\`) {
			return name
		}
		return `\\.\pipe\` + name
	}
	return `\\.\pipe\` + DefaultPipeName
}

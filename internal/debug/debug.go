// Package debug provides toggleable, component-tagged debug logging,
// adapted from the teacher's internal/debug (same SetOutput/Enabled/Log shape,
// trimmed of its MCP-stdio-suppression concerns since this core has no
// MCP surface to protect).
package debug

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// EnableDebug can be set at build time:
// go build -ldflags "-X github.com/standardbeagle/xref/internal/debug.EnableDebug=true"
var EnableDebug = "false"

var (
	mu     sync.Mutex
	output io.Writer
)

// SetOutput sets the writer debug output goes to. Pass nil to disable it.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return output
}

// Enabled reports whether debug logging is currently on, either via the
// build-time flag or the DEBUG environment variable.
func Enabled() bool {
	if EnableDebug == "true" {
		return true
	}
	v := os.Getenv("DEBUG")
	return v == "1" || v == "true"
}

// Log writes a component-tagged debug line if logging is enabled and an
// output writer is configured.
func Log(component, format string, args ...interface{}) {
	if !Enabled() {
		return
	}
	w := writer()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[DEBUG:%s] "+format+"\n", append([]interface{}{component}, args...)...)
}

// LogIndexing logs under the INDEX component tag.
func LogIndexing(format string, args ...interface{}) { Log("INDEX", format, args...) }

// LogWatch logs under the WATCH component tag.
func LogWatch(format string, args ...interface{}) { Log("WATCH", format, args...) }

// LogQuery logs under the QUERY component tag.
func LogQuery(format string, args ...interface{}) { Log("QUERY", format, args...) }

// internal/recovery/recovery.go
package recovery

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
)

// Overridden in tests
var (
	output io.Writer = os.Stderr
	exit             = os.Exit
)

// HandlePanic should be deferred at the top of main().
// It prints the panic and stack trace and exits with code 1.
func HandlePanic() {
	if r := recover(); r != nil {
		report("main", r)
		exit(1)
	}
}

// HandlePanicFunc prints the panic, calls cleanup and exits with code 1.
func HandlePanicFunc(cleanup func()) {
	if r := recover(); r != nil {
		report("main", r)
		if cleanup != nil {
			cleanup()
		}
		exit(1)
	}
}

// Go runs fn in a new goroutine. A panic in fn is reported with the
// goroutine's name and terminates the process.
//
//	recovery.Go("websocket", func() { errCh <- ws.Run(ctx) })
func Go(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				report(name, r)
				exit(1)
			}
		}()
		fn()
	}()
}

func report(where string, r any) {
	_, _ = fmt.Fprintf(output, "FATAL (%s): %v\n\nStack trace:\n%s\n", where, r, debug.Stack())
}

// Package diag implements the VM's two user-visible diagnostic
// surfaces — the exact-format PRINT line and the exact-format fatal
// ERROR line mandated by the governing specification — plus an
// internal operational logger for everything else (worker lifecycle,
// context creation/retirement) that must never appear on those two
// surfaces.
package diag

import (
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/skeinlang/skein/pkg/token"
)

// Sink is where PRINT and ERROR output goes. The CLI wires this to
// os.Stdout/os.Stderr; tests wire it to a bytes.Buffer.
type Sink struct {
	Out io.Writer
	Err io.Writer
}

// Print writes one PRINT line in the wire format the specification
// fixes: "print: type=<int>, state=<int>, value='<string>'".
func (s Sink) Print(v token.Value) {
	fmt.Fprintf(s.Out, "print: type=%d, state=%d, value='%s'\n", v.Type, v.State, v.Raw)
}

// Error writes one fatal-error line: "ERROR: <message>". Callers exit
// the process with code 1 immediately after.
func (s Sink) Error(err error) {
	fmt.Fprintf(s.Err, "ERROR: %s\n", err.Error())
}

// logger is the package-level internal logger, defaulting to
// slog.Default(). Grounded on giantswarm-k8senv's internal/core/log.go
// pattern: an atomic.Pointer so concurrent workers can read it without
// a lock, with a SetLogger/Logger accessor pair so an embedder can
// redirect or silence internal logging without touching PRINT/ERROR
// output, which is a wire contract, not a log stream.
var logger atomic.Pointer[slog.Logger]

// Logger returns the current internal logger, or a default derived
// from slog.Default() if none has been set.
func Logger() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return slog.Default().With("component", "skein")
}

// SetLogger installs l as the internal logger. Passing nil resets to
// the slog.Default()-derived logger.
func SetLogger(l *slog.Logger) {
	logger.Store(l)
}

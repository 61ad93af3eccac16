package core

import (
	"fmt"
	"sync/atomic"
)

// DiagnosticLevel controls what happens when a graphics call reports failure.
type DiagnosticLevel int32

const (
	// DiagnosticSilent ignores failed calls.
	DiagnosticSilent DiagnosticLevel = iota
	// DiagnosticLog logs failed calls and carries on.
	DiagnosticLog
	// DiagnosticFatal treats any failed call as a fatal assertion.
	DiagnosticFatal
)

var diagnosticLevel atomic.Int32

func init() {
	diagnosticLevel.Store(int32(DiagnosticFatal))
}

func SetDiagnosticLevel(level DiagnosticLevel) {
	diagnosticLevel.Store(int32(level))
}

func GetDiagnosticLevel() DiagnosticLevel {
	return DiagnosticLevel(diagnosticLevel.Load())
}

// CheckCall reports whether err is nil. A non-nil error is logged or turned
// into a fatal assertion depending on the diagnostic level.
func CheckCall(err error, what string, args ...interface{}) bool {
	if err == nil {
		return true
	}
	msg := fmt.Sprintf(what, args...)
	switch GetDiagnosticLevel() {
	case DiagnosticSilent:
	case DiagnosticLog:
		LogError("%s failed: %s", msg, err)
	default:
		LogFatal("%s failed: %s", msg, err)
	}
	return false
}

// Assert is fatal when cond is false, whatever the diagnostic level.
func Assert(cond bool, msg string, args ...interface{}) {
	if !cond {
		LogFatal("assertion failed: "+msg, args...)
	}
}

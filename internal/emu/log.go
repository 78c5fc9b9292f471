// Package emu implements the RV32I interpreter: register file, segmented
// memory, the ELF32 loader, and the environment-call bridge to the host.
package emu

import (
	"fmt"
	"os"
)

// Verbose gates diagnostic tracing. It is set once from main before the
// session starts; nothing in this package mutates it.
var Verbose bool

// Debugf prints a diagnostic line to stderr when Verbose is set.
func Debugf(format string, args ...any) {
	if Verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// Warnf prints a warning to stderr unconditionally. Warnings mark
// conditions this emulator tolerates (misaligned access, dubious but
// non-fatal ELF fields) rather than aborting on.
func Warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "warning: "+format, args...)
}

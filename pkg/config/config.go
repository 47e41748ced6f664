// Package config wires up command-line flags for the server entrypoint. Every tunable in this repo is a plain
// flag.Var defined next to the code it controls (see pkg/port, pkg/utils, cmd/kiwi); this package only owns the parsing
// entrypoint and the test helper for overriding a flag within a single test.
package config

import (
	"flag"
	"log/slog"
	"testing"

	"github.com/nobletooth/zindex/pkg/utils"
)

// InitFlags parses the command line flags. It should be called once, after every package has registered its
// flags via package-level var declarations, and before any flag is read.
func InitFlags() {
	flag.Parse()
	flag.VisitAll(func(f *flag.Flag) {
		slog.Debug("Flag value.", "name", f.Name, "value", f.Value.String())
	})
}

// SetTestFlag sets a flag to a specific value for the duration of the test, restoring its previous value on
// cleanup.
func SetTestFlag(t *testing.T, name, value string) {
	utils.SetTestFlag(t, name, value)
}

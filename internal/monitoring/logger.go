// Package monitoring routes the diagnostic output of the model, pyramid,
// sampler and fitting packages. Those packages report progress such as
// retained modes, pyramid sizes and per-run step counts through Logf and
// never write to stdout themselves; the CLI decides whether the messages
// are shown.
package monitoring

import "log"

// Logf receives every diagnostic line. It is log.Printf until SetLogger
// replaces it. Replace it before starting concurrent fits; it is not
// guarded.
var Logf func(format string, v ...interface{}) = log.Printf

func discard(string, ...interface{}) {}

// SetLogger installs f as Logf. A nil f silences diagnostics.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		f = discard
	}
	Logf = f
}

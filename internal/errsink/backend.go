// Package errsink durably records the FormatErrors a formatting call
// registers (spec.md's error-handling design), the way the teacher's
// internal/backends package durably records enriched log lines: multiple
// pluggable backends, broadcast from one Manager.
package errsink

import "bibformat/internal/formaterror"

// Backend is one destination a registered FormatError can be sent to.
type Backend interface {
	Send(err *formaterror.FormatError) error
	Shutdown()
	Name() string
}

// Package errs classifies the host's fatal and recoverable error conditions.
package errs

import "fmt"

// Kind identifies which class of error a condition belongs to, per the
// propagation rules: Config/Resolve/Resource/PluginRuntime are fatal,
// ProtocolWarn is logged and the offending event dropped.
type Kind int

const (
	Config Kind = iota
	Resolve
	Resource
	PluginRuntime
	ProtocolWarn
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "config"
	case Resolve:
		return "resolve"
	case Resource:
		return "resource"
	case PluginRuntime:
		return "plugin runtime"
	case ProtocolWarn:
		return "protocol warning"
	default:
		return "unknown"
	}
}

// Fatal reports whether errors of this kind should abort startup before the
// audio callback is ever activated.
func (k Kind) Fatal() bool {
	return k != ProtocolWarn
}

// Error is a host error tagged with its Kind so callers can branch on
// fatality with errors.As without string matching.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Wrapf builds a classified error from a format string.
func Wrapf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

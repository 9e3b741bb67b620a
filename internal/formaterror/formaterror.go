// Package formaterror defines the error taxonomy the formatting engine
// reports through (spec.md §"ERROR HANDLING DESIGN"): each stage of a
// formatRecord call that can fail registers a typed FormatError rather than
// aborting, so a caller always gets back whatever text could be produced
// plus the list of things that went wrong along the way.
package formaterror

import "fmt"

// Code names one of the engine's known failure categories. Unlike
// ElementEvaluationFailure, the others are always registered and returned
// to the caller regardless of the requested verbosity (spec.md's verbosity
// control governs how element-evaluation failures are rendered inline, not
// whether engine-level failures are reported at all).
type Code string

const (
	// NoTemplateFound: the decision engine produced no template and no
	// default was configured for the requested output format.
	NoTemplateFound Code = "NoTemplateFound"
	// NoSuchRecord: the requested record id does not exist (or is marked
	// absent) in the record store. Distinct from NoTemplateFound, which
	// is a decision-engine failure against a record that does exist.
	NoSuchRecord Code = "NoSuchRecord"
	// OutputFormatReadFailure: the output-format rule file could not be
	// read or parsed.
	OutputFormatReadFailure Code = "OutputFormatReadFailure"
	// TemplateReadFailure: a template file could not be read from disk.
	TemplateReadFailure Code = "TemplateReadFailure"
	// UnknownOutputCode: the requested output format code has no rule
	// file and no registered metadata.
	UnknownOutputCode Code = "UnknownOutputCode"
	// UnknownElement: an invocation names an element the registry cannot
	// resolve at all. Always yields an empty substitution regardless of
	// verbosity — unlike ElementEvaluationFailure, there is no element to
	// blame the failure on, so there's nothing sensible to render inline.
	UnknownElement Code = "UnknownElement"
	// ElementEvaluationFailure: a resolved code element failed to load or
	// its function returned an error. Verbosity-gated: silenced at 0,
	// rendered inline at >=5, escalated to Fatal at >=9.
	ElementEvaluationFailure Code = "ElementEvaluationFailure"
	// BadRulePattern: a decision-engine rule's regex failed to compile.
	// Registered under this code (not OutputFormatReadFailure), so the
	// decision engine can describe exactly which rule misbehaved.
	BadRulePattern Code = "BadRulePattern"
	// BadBuiltinParam: a builtin parameter's value could not be parsed
	// (e.g. a non-integer nbmax). The parameter is simply ignored and the
	// element evaluates as if it had not been supplied.
	BadBuiltinParam Code = "BadBuiltinParam"
)

// FormatError is one registered failure. RecordID and OutputCode are
// populated when known; both may be empty (e.g. a template-load failure
// during a preview render with no output code at all).
type FormatError struct {
	Code       Code
	Message    string
	RecordID   string
	OutputCode string
	Template   string
	Element    string
}

func (e *FormatError) Error() string {
	switch {
	case e.Element != "":
		return fmt.Sprintf("%s: %s (element %s)", e.Code, e.Message, e.Element)
	case e.Template != "":
		return fmt.Sprintf("%s: %s (template %s)", e.Code, e.Message, e.Template)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Fatal wraps a FormatError that must abort the entire formatRecord call
// (verbosity >= 9 escalation of an element-evaluation failure).
type Fatal struct {
	*FormatError
}

func (f *Fatal) Unwrap() error { return f.FormatError }

// Sink receives every FormatError registered during a formatting call. A
// nil Sink silently drops them; the caller still gets the errors returned
// directly from formatRecord regardless.
type Sink interface {
	Register(err *FormatError)
}

// Collector is a Sink that simply accumulates every error it's given, used
// by the engine facade to build the per-call error list that formatRecord
// returns alongside the rendered text.
type Collector struct {
	Errors []*FormatError
}

func (c *Collector) Register(err *FormatError) {
	c.Errors = append(c.Errors, err)
}

// Tee forwards every registered error to both an accumulating Collector and
// an external Sink (e.g. the errsink backend), so a single formatting call
// both returns its own errors and durably logs them.
func Tee(collector *Collector, external Sink) Sink {
	return teeSink{collector: collector, external: external}
}

type teeSink struct {
	collector *Collector
	external  Sink
}

func (t teeSink) Register(err *FormatError) {
	t.collector.Register(err)
	if t.external != nil {
		t.external.Register(err)
	}
}

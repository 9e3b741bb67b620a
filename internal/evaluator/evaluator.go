// Package evaluator implements the element evaluator (spec.md §4.F): given
// a parsed invocation and a record view, it resolves the element, binds
// parameters, runs it, and applies the prefix/suffix/default wrapping
// rule.
//
// Built-in parameter extraction uses mapstructure.WeakDecode, the same
// string-attribute-map-to-struct binding internal/pipeline/enrichment.go
// and client_ip_extraction.go use to turn stage config into typed structs.
package evaluator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"bibformat/internal/bufferpool"
	"bibformat/internal/elements"
	"bibformat/internal/formaterror"
	"bibformat/internal/record"
	"bibformat/internal/templatelang"
)

// paramsPool reuses the small params map every code-element invocation
// builds and discards, avoiding one map allocation per <BFE_X/> evaluated.
var paramsPool = bufferpool.NewObjectPool(
	256,
	func() map[string]string { return make(map[string]string, 4) },
	func(m map[string]string) {
		for k := range m {
			delete(m, k)
		}
	},
)

// builtinParams are the parameters the evaluator itself honours, never
// passed through to a code element's own params (spec.md §4.F step 2).
type builtinParams struct {
	Prefix    string `mapstructure:"prefix"`
	Suffix    string `mapstructure:"suffix"`
	Default   string `mapstructure:"default"`
	Separator string `mapstructure:"separator"`
	NbMax     string `mapstructure:"nbmax"`
}

func extractBuiltins(attrs map[string]string) builtinParams {
	// separator's declared default is one space (spec.md §3); seed it
	// before decoding so an absent attribute keeps the default while a
	// present (even empty) one overrides it.
	b := builtinParams{Separator: " "}
	// Attribute maps are always well-formed string->string values; a
	// WeakDecode failure here would mean mapstructure itself is broken.
	_ = mapstructure.WeakDecode(attrs, &b)
	return b
}

// nbMaxState distinguishes an absent nbmax attribute from one present but
// not a positive integer, since the two cases behave differently: absent
// means "no limit", invalid means "no limit, but register a diagnostic".
type nbMaxState int

const (
	nbMaxAbsent nbMaxState = iota
	nbMaxValid
	nbMaxInvalid
)

func (b builtinParams) nbMax() (int, nbMaxState) {
	if b.NbMax == "" {
		return 0, nbMaxAbsent
	}
	n, err := strconv.Atoi(b.NbMax)
	if err != nil || n <= 0 {
		return 0, nbMaxInvalid
	}
	return n, nbMaxValid
}

// Evaluator runs element invocations against a record view.
type Evaluator struct {
	Registry  *elements.Registry
	Verbosity int
	Sink      formaterror.Sink
}

// New creates an Evaluator. sink may be nil.
func New(registry *elements.Registry, verbosity int, sink formaterror.Sink) *Evaluator {
	return &Evaluator{Registry: registry, Verbosity: verbosity, Sink: sink}
}

// Eval resolves and runs one invocation, returning its wrapped output. A
// non-nil error is only ever a *formaterror.Fatal, signalling that
// verbosity >= 9 escalated an element failure into aborting the entire
// formatting call; every other failure is absorbed into the returned
// string (spec.md §4.F: "verbosity controls the emitted form").
func (e *Evaluator) Eval(inv templatelang.Invocation, view *record.View) (string, error) {
	b := extractBuiltins(inv.Attrs)

	resolved, err := e.Registry.Resolve(inv.Name)
	if err != nil {
		return e.onUnknownElement(inv.Name, err), nil
	}

	var body string
	switch resolved.Kind {
	case elements.KindCode:
		body, err = e.evalCode(resolved.Code, inv.Attrs, view)
		if err != nil {
			return e.onFailure(inv.Name, err, b)
		}
	case elements.KindField:
		body = e.evalField(inv.Name, resolved.Field, b, view)
	}

	return wrap(body, b), nil
}

// onUnknownElement handles an invocation naming an element the registry
// cannot resolve at all. Unlike a resolved element that fails to evaluate,
// there is no prefix/suffix/default wrapping and no verbosity escalation:
// an unknown element always yields an empty substitution (spec.md §4.E,
// §7).
func (e *Evaluator) onUnknownElement(name string, cause error) string {
	if e.Sink != nil {
		e.Sink.Register(&formaterror.FormatError{
			Code:    formaterror.UnknownElement,
			Message: cause.Error(),
			Element: name,
		})
	}
	return ""
}

func (e *Evaluator) evalCode(ce *elements.CodeElement, attrs map[string]string, view *record.View) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("element panicked: %v", r)
		}
	}()

	params := paramsPool.Acquire()
	defer paramsPool.Release(params)
	for _, p := range ce.Params {
		if v, ok := attrs[strings.ToLower(p.Name)]; ok {
			params[p.Name] = v
		} else {
			params[p.Name] = p.Default
		}
	}
	return ce.Fn(view, params)
}

func (e *Evaluator) evalField(name string, fe *elements.FieldElement, b builtinParams, view *record.View) string {
	var values []string
	for _, tag := range fe.Tags {
		for _, f := range view.Fields(tag) {
			for _, sf := range f.Subfields {
				values = append(values, sf.Value)
			}
		}
	}

	switch n, state := b.nbMax(); state {
	case nbMaxValid:
		if n < len(values) {
			values = values[:n]
		}
	case nbMaxInvalid:
		if e.Sink != nil {
			e.Sink.Register(&formaterror.FormatError{
				Code:    formaterror.BadBuiltinParam,
				Message: fmt.Sprintf("nbmax: %q is not a positive integer", b.NbMax),
				Element: name,
			})
		}
	}

	sep := b.Separator
	return strings.Join(values, sep)
}

func (e *Evaluator) onFailure(name string, cause error, b builtinParams) (string, error) {
	fe := &formaterror.FormatError{
		Code:    formaterror.ElementEvaluationFailure,
		Message: cause.Error(),
		Element: name,
	}
	if e.Sink != nil {
		e.Sink.Register(fe)
	}

	switch {
	case e.Verbosity <= 0:
		return "", nil
	case e.Verbosity >= 9:
		return "", &formaterror.Fatal{FormatError: fe}
	case e.Verbosity >= 5:
		return wrap(fmt.Sprintf("[ERROR: element %s failed: %s]", name, cause), b), nil
	default:
		return wrap("", b), nil
	}
}

func wrap(body string, b builtinParams) string {
	if strings.TrimSpace(body) == "" {
		return b.Default
	}
	return b.Prefix + body + b.Suffix
}

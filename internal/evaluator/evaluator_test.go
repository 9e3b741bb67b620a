package evaluator

import (
	"errors"
	"testing"

	"bibformat/internal/elements"
	"bibformat/internal/formaterror"
	"bibformat/internal/record"
	"bibformat/internal/templatelang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleView() *record.View {
	rec, _ := record.ParseMARCXML([]byte(`<record>
  <datafield tag="245" ind1="_" ind2="_"><subfield code="a">Hello</subfield></datafield>
  <datafield tag="700" ind1="_" ind2="_"><subfield code="a">Doe, Jane</subfield></datafield>
  <datafield tag="700" ind1="_" ind2="_"><subfield code="a">Roe, Richard</subfield></datafield>
</record>`))
	return record.NewInlineView(rec)
}

func TestEvalCodeElementSimpleSubstitution(t *testing.T) {
	reg := elements.NewRegistry(nil, nil)
	reg.Register(&elements.CodeElement{Name: "TITLE", Fn: func(v *record.View, p map[string]string) (string, error) {
		return v.Field("245__a"), nil
	}})
	ev := New(reg, 5, nil)

	out, err := ev.Eval(templatelang.Invocation{Name: "TITLE", Attrs: map[string]string{}}, sampleView())
	require.NoError(t, err)
	assert.Equal(t, "Hello", out)
}

func TestEvalWrappingDefaultWhenEmpty(t *testing.T) {
	reg := elements.NewRegistry(nil, nil)
	reg.Register(&elements.CodeElement{Name: "X", Fn: func(v *record.View, p map[string]string) (string, error) {
		return "", nil
	}})
	ev := New(reg, 5, nil)

	out, err := ev.Eval(templatelang.Invocation{Name: "X", Attrs: map[string]string{"default": "n/a", "prefix": "[", "suffix": "]"}}, sampleView())
	require.NoError(t, err)
	assert.Equal(t, "n/a", out)
}

func TestEvalWrappingPrefixSuffixWhenNonEmpty(t *testing.T) {
	reg := elements.NewRegistry(nil, nil)
	reg.Register(&elements.CodeElement{Name: "X", Fn: func(v *record.View, p map[string]string) (string, error) {
		return "v", nil
	}})
	ev := New(reg, 5, nil)

	out, err := ev.Eval(templatelang.Invocation{Name: "X", Attrs: map[string]string{"default": "n/a", "prefix": "[", "suffix": "]"}}, sampleView())
	require.NoError(t, err)
	assert.Equal(t, "[v]", out)
}

func TestEvalFieldElementFlattensAndJoins(t *testing.T) {
	reg := elements.NewRegistry(&fakeTagTable{tags: map[string][]string{"AUTHOR": {"700__a"}}}, nil)
	ev := New(reg, 5, nil)

	out, err := ev.Eval(templatelang.Invocation{Name: "AUTHOR", Attrs: map[string]string{"separator": "; "}}, sampleView())
	require.NoError(t, err)
	assert.Equal(t, "Doe, Jane; Roe, Richard", out)
}

func TestEvalFieldElementRespectsNbMax(t *testing.T) {
	reg := elements.NewRegistry(&fakeTagTable{tags: map[string][]string{"AUTHOR": {"700__a"}}}, nil)
	ev := New(reg, 5, nil)

	out, err := ev.Eval(templatelang.Invocation{Name: "AUTHOR", Attrs: map[string]string{"separator": "; ", "nbmax": "1"}}, sampleView())
	require.NoError(t, err)
	assert.Equal(t, "Doe, Jane", out)
}

type recordingSink struct{ errs []*formaterror.FormatError }

func (s *recordingSink) Register(err *formaterror.FormatError) { s.errs = append(s.errs, err) }

func TestEvalVerbosityZeroSilencesFailure(t *testing.T) {
	reg := elements.NewRegistry(nil, nil)
	reg.Register(&elements.CodeElement{Name: "X", Fn: func(v *record.View, p map[string]string) (string, error) {
		return "", errors.New("boom")
	}})
	sink := &recordingSink{}
	ev := New(reg, 0, sink)

	out, err := ev.Eval(templatelang.Invocation{Name: "X", Attrs: map[string]string{}}, sampleView())
	require.NoError(t, err)
	assert.Equal(t, "", out)
	assert.Len(t, sink.errs, 1)
	assert.Equal(t, formaterror.ElementEvaluationFailure, sink.errs[0].Code)
}

func TestEvalVerbosityFiveRendersInlineError(t *testing.T) {
	reg := elements.NewRegistry(nil, nil)
	reg.Register(&elements.CodeElement{Name: "X", Fn: func(v *record.View, p map[string]string) (string, error) {
		return "", errors.New("boom")
	}})
	ev := New(reg, 5, nil)

	out, err := ev.Eval(templatelang.Invocation{Name: "X", Attrs: map[string]string{}}, sampleView())
	require.NoError(t, err)
	assert.Contains(t, out, "boom")
}

func TestEvalVerbosityNineEscalatesToFatal(t *testing.T) {
	reg := elements.NewRegistry(nil, nil)
	reg.Register(&elements.CodeElement{Name: "X", Fn: func(v *record.View, p map[string]string) (string, error) {
		return "", errors.New("boom")
	}})
	ev := New(reg, 9, nil)

	_, err := ev.Eval(templatelang.Invocation{Name: "X", Attrs: map[string]string{}}, sampleView())
	var fatal *formaterror.Fatal
	assert.ErrorAs(t, err, &fatal)
}

func TestEvalUnknownElementYieldsEmptySubstitution(t *testing.T) {
	reg := elements.NewRegistry(nil, nil)
	sink := &recordingSink{}
	ev := New(reg, 9, sink)

	// Even at the highest verbosity (which would escalate a resolved
	// element's evaluation failure to Fatal) and with a default attribute
	// set (which would apply to a resolved element's empty body), an
	// unknown element simply yields "" with no error returned.
	out, err := ev.Eval(templatelang.Invocation{Name: "NOPE", Attrs: map[string]string{"default": "fallback"}}, sampleView())
	require.NoError(t, err)
	assert.Equal(t, "", out)
	require.Len(t, sink.errs, 1)
	assert.Equal(t, formaterror.UnknownElement, sink.errs[0].Code)
}

func TestEvalFieldElementDefaultSeparatorIsOneSpace(t *testing.T) {
	reg := elements.NewRegistry(&fakeTagTable{tags: map[string][]string{"AUTHOR": {"700__a"}}}, nil)
	ev := New(reg, 5, nil)

	out, err := ev.Eval(templatelang.Invocation{Name: "AUTHOR", Attrs: map[string]string{}}, sampleView())
	require.NoError(t, err)
	assert.Equal(t, "Doe, Jane Roe, Richard", out)
}

func TestEvalFieldElementBadNbMaxLeavesListUnclipped(t *testing.T) {
	reg := elements.NewRegistry(&fakeTagTable{tags: map[string][]string{"AUTHOR": {"700__a"}}}, nil)
	sink := &recordingSink{}
	ev := New(reg, 5, sink)

	out, err := ev.Eval(templatelang.Invocation{Name: "AUTHOR", Attrs: map[string]string{"separator": "; ", "nbmax": "not-a-number"}}, sampleView())
	require.NoError(t, err)
	assert.Equal(t, "Doe, Jane; Roe, Richard", out)
	require.Len(t, sink.errs, 1)
	assert.Equal(t, formaterror.BadBuiltinParam, sink.errs[0].Code)
}

func TestEvalCodeElementPanicIsRecovered(t *testing.T) {
	reg := elements.NewRegistry(nil, nil)
	reg.Register(&elements.CodeElement{Name: "X", Fn: func(v *record.View, p map[string]string) (string, error) {
		panic("kaboom")
	}})
	sink := &recordingSink{}
	ev := New(reg, 0, sink)

	out, err := ev.Eval(templatelang.Invocation{Name: "X", Attrs: map[string]string{}}, sampleView())
	require.NoError(t, err)
	assert.Equal(t, "", out)
	require.Len(t, sink.errs, 1)
}

type fakeTagTable struct {
	tags map[string][]string
}

func (f *fakeTagTable) TagExists(name string) bool                   { _, ok := f.tags[name]; return ok }
func (f *fakeTagTable) GetTagsFromName(name string) []string         { return f.tags[name] }
func (f *fakeTagTable) GetAllNameTagMappings() map[string][]string   { return f.tags }

package decision

import (
	"testing"

	"bibformat/internal/formaterror"
	"bibformat/internal/outputformat"
	"bibformat/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func viewWith980(value string) *record.View {
	rec, _ := record.ParseMARCXML([]byte(`<record><datafield tag="980" ind1="_" ind2="_"><subfield code="a">` + value + `</subfield></datafield></record>`))
	return record.NewInlineView(rec)
}

func TestDecideFirstMatchingRuleWins(t *testing.T) {
	of := outputformat.OutputFormat{
		Rules: []outputformat.Rule{
			{Field: "980__a", Value: "PREPRINT", Template: "preprint.bft"},
			{Field: "980__a", Value: "PRE", Template: "later.bft"},
		},
		Default: "default.bft",
	}

	assert.Equal(t, "preprint.bft", Decide(of, viewWith980("PREPRINT"), nil))
	assert.Equal(t, "default.bft", Decide(of, viewWith980("REPORT"), nil))
	assert.Equal(t, "default.bft", Decide(of, record.NewInlineView(&record.Record{Fields: map[string][]record.Field{}}), nil))
}

func TestDecideIsCaseInsensitive(t *testing.T) {
	of := outputformat.OutputFormat{Rules: []outputformat.Rule{{Field: "980__a", Value: "preprint", Template: "p.bft"}}}
	assert.Equal(t, "p.bft", Decide(of, viewWith980("PREPRINT"), nil))
}

func TestDecideNoMatchNoDefaultRegistersError(t *testing.T) {
	of := outputformat.OutputFormat{}
	sink := &collectingSink{}

	out := Decide(of, viewWith980("X"), sink)
	assert.Equal(t, "", out)
	require.Len(t, sink.errs, 1)
	assert.Equal(t, formaterror.NoTemplateFound, sink.errs[0].Code)
}

func TestDecideBadRulePatternIsSkippedNotFatal(t *testing.T) {
	of := outputformat.OutputFormat{
		Rules: []outputformat.Rule{
			{Field: "980__a", Value: "(unclosed", Template: "bad.bft"},
			{Field: "980__a", Value: "PREPRINT", Template: "good.bft"},
		},
	}
	sink := &collectingSink{}

	out := Decide(of, viewWith980("PREPRINT"), sink)
	assert.Equal(t, "good.bft", out)
	require.Len(t, sink.errs, 1)
	assert.Equal(t, formaterror.BadRulePattern, sink.errs[0].Code)
}

type collectingSink struct{ errs []*formaterror.FormatError }

func (s *collectingSink) Register(err *formaterror.FormatError) { s.errs = append(s.errs, err) }

package outputformat

import (
	"os"
	"path/filepath"
	"testing"

	"bibformat/internal/formaterror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRuleAndDefault(t *testing.T) {
	body := "980:\nPREPRINT --- preprint.bft\ndefault: default.bft\n"
	of := Parse(body)

	require.Len(t, of.Rules, 1)
	assert.Equal(t, Rule{Field: "980", Value: "PREPRINT", Template: "preprint.bft"}, of.Rules[0])
	assert.Equal(t, "default.bft", of.Default)
}

func TestParseTagContextJoinsTokensAfterFirstWord(t *testing.T) {
	body := "CFG 980 __ a:\nPREPRINT --- preprint.bft\n"
	of := Parse(body)

	require.Len(t, of.Rules, 1)
	assert.Equal(t, "980__a", of.Rules[0].Field)
}

func TestParseTagContextPersistsAcrossRuleLines(t *testing.T) {
	body := "980__a:\nPREPRINT --- preprint.bft\nREPORT --- report.bft\n"
	of := Parse(body)

	require.Len(t, of.Rules, 2)
	assert.Equal(t, "980__a", of.Rules[0].Field)
	assert.Equal(t, "980__a", of.Rules[1].Field)
}

func TestParseIgnoresBlankLines(t *testing.T) {
	body := "980:\n\nPREPRINT --- preprint.bft\n\n"
	of := Parse(body)
	assert.Len(t, of.Rules, 1)
}

func TestLoaderMissingFileRegistersError(t *testing.T) {
	dir := t.TempDir()
	sink := &collectingSink{}
	l := New(dir, nil, sink)

	of := l.Load("missing.bfo")
	assert.Empty(t, of.Rules)
	assert.Empty(t, of.Default)
	require.Len(t, sink.errs, 1)
	assert.Equal(t, formaterror.OutputFormatReadFailure, sink.errs[0].Code)
}

func TestLoaderReadsAndParsesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.bfo"), []byte("980:\nPREPRINT --- p.bft\ndefault: d.bft\n"), 0o644))

	l := New(dir, nil, nil)
	of := l.Load("a.bfo")
	assert.Equal(t, "d.bft", of.Default)
	require.Len(t, of.Rules, 1)
}

type collectingSink struct{ errs []*formaterror.FormatError }

func (s *collectingSink) Register(err *formaterror.FormatError) { s.errs = append(s.errs, err) }

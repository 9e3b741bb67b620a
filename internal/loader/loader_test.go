package loader

import (
	"os"
	"path/filepath"
	"testing"

	"bibformat/internal/cache"
	"bibformat/internal/formaterror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemplate(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoadStripsHeaderAndEscapesPercent(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "default.bft", "<name>Default</name><description>d</description>100% <BFE_TITLE/>")

	l := New(dir, nil, nil)
	tpl := l.Load("default.bft")

	assert.Equal(t, "Default", tpl.Name)
	assert.Equal(t, "d", tpl.Description)
	assert.Equal(t, "100%% <BFE_TITLE/>", tpl.Code)
}

func TestLoadCachesByFilename(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "a.bft", "one")

	c := cache.NewPersistedCache[Template]("templates", 8, nil)
	l := New(dir, c, nil)

	first := l.Load("a.bft")
	require.Equal(t, "one", first.Code)

	writeTemplate(t, dir, "a.bft", "two")
	second := l.Load("a.bft")
	assert.Equal(t, "one", second.Code, "cached load should not re-read the file")
}

func TestLoadMissingFileRegistersErrorAndReturnsEmptyCode(t *testing.T) {
	dir := t.TempDir()
	sink := &collectingSink{}
	l := New(dir, nil, sink)

	tpl := l.Load("missing.bft")
	assert.Equal(t, "", tpl.Code)
	require.Len(t, sink.errs, 1)
	assert.Equal(t, formaterror.TemplateReadFailure, sink.errs[0].Code)
}

func TestLoadRetriesAfterFailedLoadEvenWhenCached(t *testing.T) {
	dir := t.TempDir()
	c := cache.NewPersistedCache[Template]("templates", 8, nil)
	l := New(dir, c, nil)

	first := l.Load("late.bft")
	assert.Equal(t, "", first.Code)

	writeTemplate(t, dir, "late.bft", "now exists")
	second := l.Load("late.bft")
	assert.Equal(t, "now exists", second.Code)
}

type collectingSink struct{ errs []*formaterror.FormatError }

func (s *collectingSink) Register(err *formaterror.FormatError) { s.errs = append(s.errs, err) }

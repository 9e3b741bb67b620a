// Package loader implements the template loader (spec.md §4.G): read a
// template file from disk, strip its header, double every literal '%' (the
// escape convention of the original engine; engine.FormatRecord undoes it
// before rendering), and cache the result under the template's filename.
package loader

import (
	"os"
	"strings"

	"bibformat/internal/cache"
	"bibformat/internal/formaterror"
	"bibformat/internal/templatelang"
)

// Template is the cached, load-ready form of a template file.
type Template struct {
	Code string
	Name string
	Description string
}

// Loader reads template files from a root directory, caching by filename.
type Loader struct {
	dir   string
	cache *cache.PersistedCache[Template]
	sink  formaterror.Sink
}

// New creates a Loader rooted at dir. cache and sink may be nil.
func New(dir string, c *cache.PersistedCache[Template], sink formaterror.Sink) *Loader {
	return &Loader{dir: dir, cache: c, sink: sink}
}

// Load returns the cached or freshly-read template named filename. An I/O
// failure registers a TemplateReadFailure error (spec.md:
// "I/O failure yields a registered error and a structure with empty
// code") and returns a Template with an empty Code, never an error.
func (l *Loader) Load(filename string) Template {
	if l.cache == nil {
		return l.read(filename)
	}
	t, err := l.cache.GetOrLoad(filename, func() (Template, error) {
		t := l.read(filename)
		if t.Code == "" {
			// Loading genuinely failed; don't cache the empty result so a
			// later fix to the file on disk is picked up on retry.
			return t, errEmpty
		}
		return t, nil
	})
	if err != nil {
		return t
	}
	return t
}

// Invalidate drops filename's cached entry, if any, so the next Load
// re-reads it from disk. Used by internal/reload when a template file
// changes on disk.
func (l *Loader) Invalidate(filename string) {
	if l.cache != nil {
		l.cache.Remove(filename)
	}
}

var errEmpty = emptyLoadError{}

type emptyLoadError struct{}

func (emptyLoadError) Error() string { return "template body empty after load failure" }

func (l *Loader) read(filename string) Template {
	path := filename
	if l.dir != "" {
		path = l.dir + string(os.PathSeparator) + filename
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if l.sink != nil {
			l.sink.Register(&formaterror.FormatError{
				Code:     formaterror.TemplateReadFailure,
				Message:  err.Error(),
				Template: filename,
			})
		}
		return Template{}
	}

	header, stripped := templatelang.StripHeader(string(raw))
	return Template{
		Code:        strings.ReplaceAll(stripped, "%", "%%"),
		Name:        header.Name,
		Description: header.Description,
	}
}

// Package outputformat implements the output-format loader (spec.md
// §4.H): a small line-oriented grammar mapping a record's field value to
// the template that should render it.
//
// Grammar (one directive per line, blank lines ignored):
//
//	tag 980__a:           // tag-context line: everything after the first
//	                      // word, up to a trailing colon, becomes the tag
//	                      // path used by subsequent rule lines.
//	PREPRINT --- preprint.bft   // rule: <condition> --- <templateFilename>
//	default: default.bft        // any other line containing ':' sets the
//	                             // fallback template.
package outputformat

import (
	"os"
	"strings"

	"bibformat/internal/cache"
	"bibformat/internal/formaterror"
)

// Rule is one line of an output format's decision table.
type Rule struct {
	Field    string
	Value    string
	Template string
}

// OutputFormat is the parsed content of one output-format rule file.
type OutputFormat struct {
	Rules   []Rule
	Default string
}

// Loader reads and caches output-format rule files by filename.
type Loader struct {
	dir   string
	cache *cache.PersistedCache[OutputFormat]
	sink  formaterror.Sink
}

// New creates a Loader rooted at dir. cache and sink may be nil.
func New(dir string, c *cache.PersistedCache[OutputFormat], sink formaterror.Sink) *Loader {
	return &Loader{dir: dir, cache: c, sink: sink}
}

// Load returns the cached or freshly-parsed output format named filename.
// An I/O failure registers an OutputFormatReadFailure and returns a zero
// OutputFormat (no rules, no default), never an error.
func (l *Loader) Load(filename string) OutputFormat {
	if l.cache == nil {
		return l.read(filename)
	}
	of, _ := l.cache.GetOrLoad(filename, func() (OutputFormat, error) {
		of := l.read(filename)
		if len(of.Rules) == 0 && of.Default == "" {
			return of, errUnreadable
		}
		return of, nil
	})
	return of
}

// Invalidate drops filename's cached entry, if any, so the next Load
// re-reads it from disk. Used by internal/reload when a rule file changes
// on disk.
func (l *Loader) Invalidate(filename string) {
	if l.cache != nil {
		l.cache.Remove(filename)
	}
}

var errUnreadable = unreadableError{}

type unreadableError struct{}

func (unreadableError) Error() string { return "output format unreadable or empty" }

func (l *Loader) read(filename string) OutputFormat {
	path := filename
	if l.dir != "" {
		path = l.dir + string(os.PathSeparator) + filename
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if l.sink != nil {
			l.sink.Register(&formaterror.FormatError{
				Code:     formaterror.OutputFormatReadFailure,
				Message:  err.Error(),
				Template: filename,
			})
		}
		return OutputFormat{}
	}

	return Parse(string(raw))
}

// Parse implements the line grammar directly, independent of any file I/O,
// so the decision engine and its tests can exercise it against inline rule
// text.
func Parse(body string) OutputFormat {
	var of OutputFormat
	currentTag := ""

	for _, rawLine := range strings.Split(body, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}

		switch {
		case strings.HasSuffix(line, ":"):
			clean := strings.TrimRight(line, ": \t\r")
			fields := strings.Fields(clean)
			if len(fields) > 1 {
				currentTag = strings.Join(fields[1:], "")
			} else {
				currentTag = ""
			}
		case strings.Contains(line, "---"):
			parts := strings.Split(line, "---")
			template := strings.TrimSpace(parts[len(parts)-1])
			condition := strings.TrimSpace(strings.Join(parts[:len(parts)-1], ""))
			of.Rules = append(of.Rules, Rule{Field: currentTag, Value: condition, Template: template})
		case strings.Contains(line, ":"):
			parts := strings.SplitN(line, ":", 2)
			of.Default = strings.TrimSpace(parts[1])
		}
	}

	return of
}

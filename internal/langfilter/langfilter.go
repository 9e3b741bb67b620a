// Package langfilter implements the language-block reduction pass
// (spec.md §4.D): given a template body and an active locale, each
// `<lang>...</lang>` block is replaced by the concatenation of its
// inner `<xx>...</xx>` segments matching that locale, falling back to a
// configured default locale if none match. The outer block tags are always
// consumed, even when nothing inside matched either locale.
package langfilter

import (
	"strings"

	"bibformat/internal/templatelang"
)

// Filter reduces language blocks against a fixed set of registered locales
// and a default. It holds no per-call state and is safe for concurrent use.
type Filter struct {
	locales map[string]bool
	def     string
}

// New builds a Filter recognizing the given locale codes (case-insensitive)
// and falling back to def when a block has no segment for the requested
// locale. When locales is non-empty, def's segments are only selected if def
// is one of them; segments whose tag is outside the set are always skipped.
func New(locales []string, def string) *Filter {
	set := make(map[string]bool, len(locales))
	for _, l := range locales {
		set[strings.ToLower(l)] = true
	}
	return &Filter{locales: set, def: strings.ToLower(def)}
}

// Apply reduces every language block in body to its content for locale.
// Filtering is idempotent: the result contains no more `<lang>` blocks, so
// re-applying Apply to it is a no-op.
func (f *Filter) Apply(body, locale string) string {
	locale = strings.ToLower(locale)
	return templatelang.LangBlockPattern.ReplaceAllStringFunc(body, func(block string) string {
		m := templatelang.LangBlockPattern.FindStringSubmatch(block)
		if m == nil {
			return block
		}
		inner := m[1]

		selected := f.selectSegments(inner, locale)
		if selected == "" && locale != f.def {
			selected = f.selectSegments(inner, f.def)
		}
		return selected
	})
}

// selectSegments concatenates every inner segment of a language block whose
// open/close tag names match each other and equal loc. A locale set was
// configured, segments whose tag isn't a registered locale are ignored
// entirely (they are neither loc's content nor a fallback candidate).
func (f *Filter) selectSegments(inner, loc string) string {
	var b strings.Builder
	for _, m := range templatelang.LocaleSegmentPattern.FindAllStringSubmatch(inner, -1) {
		open, content, closeTag := strings.ToLower(m[1]), m[2], strings.ToLower(m[3])
		if open != closeTag {
			continue
		}
		if len(f.locales) > 0 && !f.locales[open] {
			continue
		}
		if open == loc {
			b.WriteString(content)
		}
	}
	return b.String()
}

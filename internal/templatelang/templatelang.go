// Package templatelang recognizes the three constructs a template body may
// contain (spec.md §4.C): the `<name>`/`<description>` header, `<lang>`
// language blocks, and `<BFE_NAME .../>` element invocations. Everything
// else in a template is literal text the parser never touches.
//
// Go's regexp package (RE2) has no backreferences, so it cannot express the
// original grammar's "the attribute's closing quote must match its opening
// quote" constraint with a single captured quote. attributeRe instead spells
// out the two quote styles as alternatives (`"..."` or `'...'`); each
// alternative closes with the quote it opened with, and a value quoted with
// one style may contain the other quote character.
package templatelang

import (
	"regexp"
	"strings"
)

var (
	nameHeaderRe = regexp.MustCompile(`(?is)<name>(.*?)</name>`)
	descHeaderRe = regexp.MustCompile(`(?is)<description>(.*?)</description>`)

	// LangBlockPattern matches an entire `<lang>...</lang>` block,
	// case-insensitively. internal/langfilter uses it to locate and
	// replace blocks; it lives here because recognizing the block is a
	// template-grammar concern even though selecting its winning segment
	// is the filter's job.
	LangBlockPattern = regexp.MustCompile(`(?is)<lang>(.*?)</lang>`)

	// LocaleSegmentPattern matches a `<xx>...</yy>` inner segment inside a
	// language block. Callers must additionally check that the opening
	// and closing tag names are equal (case-insensitively) — see the
	// package comment on why this can't be enforced by the regex itself.
	LocaleSegmentPattern = regexp.MustCompile(`(?is)<([a-zA-Z]{2})>(.*?)</([a-zA-Z]{2})>`)

	invocationRe = regexp.MustCompile(`(?is)<\s*BFE_([^\s/>]+)((?:[^>]*?))/?\s*>`)
	attributeRe  = regexp.MustCompile(`(?is)([a-zA-Z_][\w-]*)\s*=\s*(?:"([^"]*)"|'([^']*)')`)
)

// Header holds the stripped `<name>`/`<description>` header content.
type Header struct {
	Name        string
	Description string
}

// StripHeader removes the first `<name>` and `<description>` elements from
// body, returning their content (empty if absent) and the remaining body.
// Headers may appear in either order and are each matched at most once.
func StripHeader(body string) (Header, string) {
	var h Header
	stripped := body

	if loc := nameHeaderRe.FindStringSubmatchIndex(stripped); loc != nil {
		h.Name = strings.TrimSpace(stripped[loc[2]:loc[3]])
		stripped = stripped[:loc[0]] + stripped[loc[1]:]
	}
	if loc := descHeaderRe.FindStringSubmatchIndex(stripped); loc != nil {
		h.Description = strings.TrimSpace(stripped[loc[2]:loc[3]])
		stripped = stripped[:loc[0]] + stripped[loc[1]:]
	}
	return h, stripped
}

// Invocation is one parsed `<BFE_NAME attr="v" .../>` element call.
type Invocation struct {
	Name  string
	Attrs map[string]string
}

// ScanAndReplace finds every element invocation in body and replaces it
// with replace's return value, in a single left-to-right pass: a
// replacement's own text is never rescanned for further invocations
// (spec.md §4.J step 6).
func ScanAndReplace(body string, replace func(Invocation) string) string {
	return invocationRe.ReplaceAllStringFunc(body, func(match string) string {
		return replace(parseInvocation(match))
	})
}

func parseInvocation(match string) Invocation {
	m := invocationRe.FindStringSubmatch(match)
	inv := Invocation{Attrs: map[string]string{}}
	if m == nil {
		return inv
	}
	inv.Name = strings.ToUpper(m[1])

	for _, am := range attributeRe.FindAllStringSubmatch(m[2], -1) {
		key := strings.ToLower(am[1])
		value := am[2]
		if am[2] == "" && am[3] != "" {
			value = am[3]
		}
		inv.Attrs[key] = value
	}
	return inv
}

// Package decision implements the decision engine (spec.md §4.I): given an
// output format's rule set and a record view, pick the template to render
// with by taking the first rule whose field value matches its pattern.
package decision

import (
	"fmt"
	"regexp"
	"strings"

	"bibformat/internal/formaterror"
	"bibformat/internal/outputformat"
	"bibformat/internal/record"
)

// Decide returns the template filename to use for view under of. On no
// match it returns of.Default if non-empty; otherwise it registers a
// NoTemplateFound error and returns "".
//
// A rule whose pattern fails to compile as a regex is treated as a
// non-match rather than aborting the whole lookup, and is additionally
// reported as BadRulePattern — an explicit relaxation of the original's
// unspecified behavior for malformed rule patterns.
func Decide(of outputformat.OutputFormat, view *record.View, sink formaterror.Sink) string {
	for _, rule := range of.Rules {
		value := strings.TrimSpace(view.Field(rule.Field))
		pattern := strings.TrimSpace(rule.Value)

		// Python's re.match anchors only at the start of the string, not
		// the end; mirror that with an explicit "^" rather than relying
		// on regexp's unanchored default (which behaves like re.search).
		re, err := regexp.Compile("(?i)^(?:" + pattern + ")")
		if err != nil {
			if sink != nil {
				sink.Register(&formaterror.FormatError{
					Code:    formaterror.BadRulePattern,
					Message: fmt.Sprintf("invalid rule pattern %q: %s", pattern, err),
				})
			}
			continue
		}
		if re.MatchString(value) {
			return rule.Template
		}
	}

	if of.Default != "" {
		return of.Default
	}

	if sink != nil {
		sink.Register(&formaterror.FormatError{
			Code:    formaterror.NoTemplateFound,
			Message: "no rule matched and no default template configured",
		})
	}
	return ""
}

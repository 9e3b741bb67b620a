// Package builtin registers the code elements compiled into this
// repository, the way internal/pipeline/stage.go's newStage switch wires
// up the teacher's pipeline stages by name.
package builtin

import (
	"time"

	"bibformat/internal/elements"
	"bibformat/internal/record"
)

// dateFormatElement prints the record's database-entry date, grounded on
// the original bfe_date_rec element which reads field 909C1c. An optional
// "field" parameter overrides the source tag, and an optional "layout"
// parameter (a Go reference-time layout) reformats a stored YYYY-MM-DD
// value; a value that isn't a YYYY-MM-DD date is returned unchanged.
func dateFormatElement(view *record.View, params map[string]string) (string, error) {
	raw := view.Field(params["field"])
	layout := params["layout"]
	if raw == "" || layout == "" {
		return raw, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return raw, nil
	}
	return t.Format(layout), nil
}

// Register adds every built-in code element to r.
func Register(r *elements.Registry) {
	r.Register(&elements.CodeElement{
		Name:        "DATE",
		Description: "Date of the entry of the record in the database.",
		Params: []elements.Param{
			{Name: "field", Default: "909C1c", Description: "tag path holding the stored date"},
			{Name: "layout", Default: "", Description: "Go reference-time layout to reformat the stored date with"},
		},
		SeeAlso: []string{"DATE"},
		Fn:      dateFormatElement,
	})
}

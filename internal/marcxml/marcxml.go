// Package marcxml serializes a parsed record back into the raw-record XML
// flavors exposed by the record store (spec.md §6: "xm", "marcxml",
// "oai_dc", "xd"). It is a pure string-assembly module: it never reads from
// or writes to a store, and shares no state with the formatting core
// (spec.md Design Notes §9).
package marcxml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"time"

	"bibformat/internal/bufferpool"
	"bibformat/internal/record"
	"bibformat/internal/stores"
)

// dcField is one row of the tag-path -> Dublin Core element table
// (spec.md §6). A tag maps to exactly one DC element; each row reads the
// first subfield with its subcode from every matching instance, and an
// indicator of "_" accepts any indicator value.
type dcField struct {
	tag     string
	ind1    string
	ind2    string
	subcode string
	element string
}

var dcTable = []dcField{
	{tag: "041", ind1: "_", ind2: "_", subcode: "a", element: "language"},
	{tag: "100", ind1: "_", ind2: "_", subcode: "a", element: "creator"},
	{tag: "700", ind1: "_", ind2: "_", subcode: "a", element: "creator"},
	{tag: "245", ind1: "_", ind2: "_", subcode: "a", element: "title"},
	{tag: "650", ind1: "1", ind2: "7", subcode: "a", element: "subject"},
	{tag: "856", ind1: "4", ind2: "_", subcode: "u", element: "identifier"},
	{tag: "520", ind1: "_", ind2: "_", subcode: "a", element: "description"},
}

// Meta carries the bibliographic metadata that lives outside the MARC field
// set proper but is needed to frame a serialized record: its identifier,
// deletion status, and creation date (used as the Dublin Core "date" and,
// for marcxml/oai_dc, the OAI datestamp).
type Meta struct {
	ID      string
	Deleted bool
	Created time.Time
}

// Marshal renders rec (plus meta) as the raw bytes for the given flavor.
func Marshal(rec *record.Record, flavor stores.RecordFlavor, meta Meta) ([]byte, error) {
	switch flavor {
	case stores.FlavorXM:
		return marshalXM(rec)
	case stores.RecordFlavor(""), stores.FlavorMARCXML:
		return marshalWrapped(rec, meta, marshalXMBody)
	case stores.FlavorOAIDC:
		return marshalWrapped(rec, meta, marshalDCBody)
	case stores.FlavorXD:
		return marshalDCBody(rec)
	default:
		return nil, fmt.Errorf("marcxml: unsupported flavor %q", flavor)
	}
}

// marshalXM renders the bare "xm" flavor: a <record> with no OAI framing.
func marshalXM(rec *record.Record) ([]byte, error) {
	b := bufferpool.GetByteBuffer()
	defer bufferpool.PutByteBuffer(b)
	writeXMRecord(b, rec)
	return append([]byte(nil), b.Bytes()...), nil
}

func marshalXMBody(rec *record.Record) ([]byte, error) {
	return marshalXM(rec)
}

// marshalWrapped frames body (the "xm" record or the Dublin Core element
// block) in the "<record><header>...</header><metadata>...</metadata>
// </record>" OAI envelope required for marcxml/oai_dc (spec.md §6). Deleted
// records skip the caller-supplied body entirely and instead emit only the
// OAI identifier and a 980$c=DELETED datafield.
func marshalWrapped(rec *record.Record, meta Meta, body func(*record.Record) ([]byte, error)) ([]byte, error) {
	b := bufferpool.GetByteBuffer()
	defer bufferpool.PutByteBuffer(b)
	b.WriteString("<record>")

	if meta.Deleted {
		fmt.Fprintf(b, `<header status="deleted"><identifier>%s</identifier>`, xmlEscape(oaiIdentifier(meta.ID)))
		fmt.Fprintf(b, "<datestamp>%s</datestamp></header>", meta.Created.UTC().Format(time.RFC3339))
		b.WriteString("<metadata><record>")
		b.WriteString(`<datafield tag="980" ind1="_" ind2="_"><subfield code="c">DELETED</subfield></datafield>`)
		b.WriteString("</record></metadata>")
		b.WriteString("</record>")
		return append([]byte(nil), b.Bytes()...), nil
	}

	fmt.Fprintf(b, "<header><identifier>%s</identifier>", xmlEscape(oaiIdentifier(meta.ID)))
	fmt.Fprintf(b, "<datestamp>%s</datestamp></header>", meta.Created.UTC().Format(time.RFC3339))

	b.WriteString("<metadata>")
	content, err := body(rec)
	if err != nil {
		return nil, err
	}
	b.Write(content)
	b.WriteString("</metadata>")
	b.WriteString("</record>")
	return append([]byte(nil), b.Bytes()...), nil
}

func oaiIdentifier(id string) string {
	return fmt.Sprintf("oai:bibformat:%s", id)
}

func writeXMRecord(b *bytes.Buffer, rec *record.Record) {
	b.WriteString("<record>")
	for _, tag := range sortedTags(rec.Fields) {
		for _, f := range rec.Fields[tag] {
			if f.IsControlField() {
				val, _ := f.FirstSubfield("")
				fmt.Fprintf(b, `<controlfield tag="%s">%s</controlfield>`, xmlEscape(tag), xmlEscape(val))
				continue
			}
			fmt.Fprintf(b, `<datafield tag="%s" ind1="%s" ind2="%s">`, xmlEscape(tag), indicatorAttr(f.Ind1), indicatorAttr(f.Ind2))
			for _, sf := range f.Subfields {
				fmt.Fprintf(b, `<subfield code="%s">%s</subfield>`, xmlEscape(sf.Code), xmlEscape(sf.Value))
			}
			b.WriteString("</datafield>")
		}
	}
	b.WriteString("</record>")
}

// marshalDCBody renders the Dublin Core element block shared by the "xd"
// and "oai_dc" flavors (spec.md §6's tag-to-element mapping): an
// <oai_dc:dc> element, returned as is for "xd" and placed inside the OAI
// envelope by marshalWrapped for "oai_dc".
func marshalDCBody(rec *record.Record) ([]byte, error) {
	b := bufferpool.GetByteBuffer()
	defer bufferpool.PutByteBuffer(b)
	b.WriteString(`<oai_dc:dc xmlns:oai_dc="http://www.openarchives.org/OAI/2.0/oai_dc/" xmlns:dc="http://purl.org/dc/elements/1.1/">`)
	for _, row := range dcTable {
		for _, f := range rec.Fields[row.tag] {
			if row.ind1 != "_" && f.Ind1 != row.ind1 {
				continue
			}
			if row.ind2 != "_" && f.Ind2 != row.ind2 {
				continue
			}
			val, ok := f.FirstSubfield(row.subcode)
			if !ok || val == "" {
				continue
			}
			fmt.Fprintf(b, "<dc:%s>%s</dc:%s>", row.element, xmlEscape(val), row.element)
		}
	}
	b.WriteString("</oai_dc:dc>")
	return append([]byte(nil), b.Bytes()...), nil
}

func indicatorAttr(v string) string {
	if v == "" {
		return "_"
	}
	return v
}

func xmlEscape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func sortedTags(fields map[string][]record.Field) []string {
	tags := make([]string, 0, len(fields))
	for tag := range fields {
		tags = append(tags, tag)
	}
	// Insertion order from a parsed MARCXML document isn't preserved by a
	// Go map; a stable tag-numeric sort keeps serialization deterministic,
	// which matters for cache-key stability and diffable test fixtures.
	for i := 1; i < len(tags); i++ {
		for j := i; j > 0 && tags[j-1] > tags[j]; j-- {
			tags[j-1], tags[j] = tags[j], tags[j-1]
		}
	}
	return tags
}

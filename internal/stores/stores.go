// Package stores declares the external collaborators the bibformat engine
// consumes but does not implement: the record store, the knowledge-base
// store, the output-format metadata store, and the tag-name table (spec.md
// §1, §6). These are genuinely out of scope for this repository — callers
// wire in their own implementations (a database, a REST client, whatever
// backs their catalog). The in-memory implementation in this package exists
// only to drive tests and local/dev runs.
package stores

import (
	"context"
	"time"
)

// RecordStatus is the result of a record-existence check.
type RecordStatus int

const (
	StatusPresent RecordStatus = iota
	StatusDeleted
	StatusAbsent
)

// RecordFlavor names a supported raw-record serialization.
type RecordFlavor string

const (
	FlavorXM      RecordFlavor = "xm"
	FlavorMARCXML RecordFlavor = "marcxml"
	FlavorOAIDC   RecordFlavor = "oai_dc"
	FlavorXD      RecordFlavor = "xd"
)

// RecordStore answers the record-level questions the formatting engine
// needs: does it exist, what are its field values, when was it touched.
type RecordStore interface {
	RecordExists(ctx context.Context, id string) (RecordStatus, error)
	GetFieldValues(ctx context.Context, id, tag string) ([]string, error)
	GetModificationDate(ctx context.Context, id string) (time.Time, error)
	GetCreationDate(ctx context.Context, id string) (time.Time, error)
	GetRawRecord(ctx context.Context, id string, flavor RecordFlavor) ([]byte, error)
}

// KBStore resolves a single scalar mapping from a named knowledge base.
type KBStore interface {
	Get(ctx context.Context, kb, key string) (value string, ok bool, err error)
}

// OutputMetadataStore supplies the display metadata for an output format
// code: its names per locale, its description, and its content type.
type OutputMetadataStore interface {
	GetNames(ctx context.Context, code string) (generic string, short, long map[string]string, err error)
	GetDescription(ctx context.Context, code string) (string, error)
	GetContentType(ctx context.Context, code string) (string, error)
}

// TagNameTable maps a logical "field element" name (e.g. "AUTHOR") to the
// MARC tag paths it should print.
type TagNameTable interface {
	TagExists(name string) bool
	GetTagsFromName(name string) []string
	GetAllNameTagMappings() map[string][]string
}

package record

import (
	"context"
	"fmt"
	"strings"

	"bibformat/internal/cache"
	"bibformat/internal/stores"
	"bibformat/internal/tagpath"
)

// View is the read-only record façade handed to element evaluators
// (spec.md §4.B). It is created per formatting call and discarded once the
// call completes; it never writes back to the store.
//
// A View wraps either an already-parsed Record (the inline case: the
// caller already has the MARCXML at hand) or an id plus a RecordStore
// (the deferred case). In the deferred case the *entire* raw record is
// fetched and parsed at most once, on first field access, and every
// subsequent accessor is served from that parsed structure — mirroring the
// original engine's BibFormatObject, which never re-queries the store
// per-field. A failed or malformed deferred load degrades to a nil record:
// every accessor on it then returns its empty zero value, it never panics
// or returns an error itself.
type View struct {
	id    string
	store stores.RecordStore
	kb    stores.KBStore
	kbCache *cache.PersistedCache[string]

	ctx context.Context

	loaded bool
	rec    *Record // nil once loaded if the fetch/parse failed
}

// NewInlineView builds a View directly from an already-parsed Record, with
// no store round-trip possible or necessary.
func NewInlineView(rec *Record) *View {
	return &View{id: rec.ID, loaded: true, rec: rec}
}

// NewDeferredView builds a View that lazily fetches and parses record id's
// "xm" flavor from store on first field access. kb and kbCache may be nil,
// in which case KB lookups always return the caller's default.
func NewDeferredView(ctx context.Context, id string, store stores.RecordStore, kb stores.KBStore, kbCache *cache.PersistedCache[string]) *View {
	return &View{ctx: ctx, id: id, store: store, kb: kb, kbCache: kbCache}
}

// ID returns the record identifier.
func (v *View) ID() string { return v.id }

func (v *View) ensureLoaded() *Record {
	if v.loaded {
		return v.rec
	}
	v.loaded = true

	if v.store == nil {
		return nil
	}
	ctx := v.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	raw, err := v.store.GetRawRecord(ctx, v.id, stores.FlavorXM)
	if err != nil || len(raw) == 0 {
		return nil
	}
	rec, err := ParseMARCXML(raw)
	if err != nil {
		return nil
	}
	v.rec = rec
	return v.rec
}

// ControlField returns the scalar value of a control field (tags 001-009),
// or "" if the path does not name one or it is absent.
func (v *View) ControlField(path string) string {
	p := tagpath.Parse(path)
	if !isControlTag(p.Tag) {
		return ""
	}
	rec := v.ensureLoaded()
	if rec == nil {
		return ""
	}
	fields := rec.Fields[p.Tag]
	if len(fields) == 0 {
		return ""
	}
	val, _ := fields[0].FirstSubfield("")
	return val
}

// Field returns the value of the first field instance matching path,
// honoring indicator and subfield selectors, or "" if none match.
func (v *View) Field(path string) string {
	p := tagpath.Parse(path)
	if isControlTag(p.Tag) {
		return v.ControlField(path)
	}
	rec := v.ensureLoaded()
	if rec == nil {
		return ""
	}
	for _, f := range rec.Fields[p.Tag] {
		if !matchesIndicators(f, p) {
			continue
		}
		if !p.HasSubfield() {
			if val, ok := f.FirstSubfield(""); ok {
				return val
			}
			continue
		}
		if val, ok := f.FirstSubfield(p.Subfield); ok {
			return val
		}
	}
	return ""
}

// Fields returns every matching field instance addressed by path as a
// one Field per matching instance (spec.md §4.B): if path addresses a
// specific subfield, each returned Field carries just that subfield's
// value(s); otherwise each carries every subfield present, in the order
// they appear in the record. Returns an empty slice, never nil, when
// nothing matches.
func (v *View) Fields(path string) []Field {
	p := tagpath.Parse(path)
	out := []Field{}

	if isControlTag(p.Tag) {
		if val := v.ControlField(path); val != "" {
			out = append(out, Field{Subfields: []Subfield{{Value: val}}})
		}
		return out
	}

	rec := v.ensureLoaded()
	if rec == nil {
		return out
	}
	for _, f := range rec.Fields[p.Tag] {
		if !matchesIndicators(f, p) {
			continue
		}
		var subs []Subfield
		for _, sf := range f.Subfields {
			if p.HasSubfield() && sf.Code != p.Subfield {
				continue
			}
			subs = append(subs, sf)
		}
		if len(subs) > 0 {
			out = append(out, Field{Ind1: f.Ind1, Ind2: f.Ind2, Subfields: subs})
		}
	}
	return out
}

// KB resolves key in the named knowledge base, returning def if the base,
// the key, or the underlying store is unavailable. Results are cached
// process-wide by (kb, key), the fourth of the engine's named caches.
func (v *View) KB(kb, key, def string) string {
	if v.kb == nil {
		return def
	}
	cacheKey := kb + "\x00" + key

	lookup := func() (string, error) {
		ctx := v.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		val, ok, err := v.kb.Get(ctx, kb, key)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("kb: no mapping for %s/%s", kb, key)
		}
		return val, nil
	}

	if v.kbCache == nil {
		val, err := lookup()
		if err != nil {
			return def
		}
		return val
	}

	val, err := v.kbCache.GetOrLoad(cacheKey, lookup)
	if err != nil {
		return def
	}
	return val
}

func matchesIndicators(f Field, p tagpath.TagPath) bool {
	if p.Ind1 != "" && p.Ind1 != tagpath.Wildcard && !strings.EqualFold(f.Ind1, p.Ind1) {
		return false
	}
	if p.Ind2 != "" && p.Ind2 != tagpath.Wildcard && !strings.EqualFold(f.Ind2, p.Ind2) {
		return false
	}
	return true
}

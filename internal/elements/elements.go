// Package elements implements the element registry (spec.md §4.E): the
// lookup that turns an invocation name into either a code element (a Go
// function with declared parameters) or a synthesized field element backed
// by a tag-name table. Code elements always take precedence over a
// same-named field element.
//
// Code elements are registered statically, the way the teacher's
// internal/pipeline/stage.go registers stage constructors in newStage's
// switch: engine.New calls internal/elements/builtin's Register when it
// builds the registry, instead of discovering .go files at runtime, since this repository compiles its
// code elements in rather than loading them from a plugin directory.
package elements

import (
	"fmt"
	"strings"

	"bibformat/internal/cache"
	"bibformat/internal/record"
	"bibformat/internal/stores"
)

// Param is one declared parameter of a code element: its name and default
// value (used when the invocation's attributes don't supply one).
type Param struct {
	Name        string
	Default     string
	Description string
}

// Func is a code element's formatting function. params contains one entry
// per declared Param, already resolved to either the invocation's
// attribute value or the parameter's default.
type Func func(view *record.View, params map[string]string) (string, error)

// CodeElement is a statically registered, named formatting function.
type CodeElement struct {
	Name        string
	Description string
	Params      []Param
	SeeAlso     []string
	Fn          Func
}

// FieldElement is synthesized from the tag-name table: a name that has no
// code element simply prints the tags registered under it.
type FieldElement struct {
	Name string
	Tags []string
}

// Kind distinguishes a Resolved element's underlying representation.
type Kind int

const (
	KindCode Kind = iota
	KindField
)

// Resolved is the outcome of looking up an invocation name.
type Resolved struct {
	Kind  Kind
	Code  *CodeElement
	Field *FieldElement
}

// Registry resolves invocation names to elements, caching results under
// their uppercased resolution key (spec.md §4.E, §4.K).
type Registry struct {
	code     map[string]*CodeElement
	tagTable stores.TagNameTable
	cache    *cache.PersistedCache[Resolved]
}

// NewRegistry creates an empty registry. tagTable may be nil, in which case
// only code elements resolve. cache may be nil, in which case resolution
// is never memoized.
func NewRegistry(tagTable stores.TagNameTable, c *cache.PersistedCache[Resolved]) *Registry {
	return &Registry{code: map[string]*CodeElement{}, tagTable: tagTable, cache: c}
}

// Register adds a code element under its uppercased name. Call during
// startup, before any formatting request resolves it.
func (r *Registry) Register(el *CodeElement) {
	r.code[strings.ToUpper(el.Name)] = el
}

// NormalizeKey uppercases name and strips an optional "BFE_" prefix, so
// that "BFE_TITLE", "bfe_title" and "TITLE" all resolve to the same entry.
func NormalizeKey(name string) string {
	key := strings.ToUpper(name)
	return strings.TrimPrefix(key, "BFE_")
}

// Resolve looks up name (in either "BFE_X" or "X" form), preferring a code
// element over a same-named field element.
func (r *Registry) Resolve(name string) (Resolved, error) {
	key := NormalizeKey(name)

	if r.cache == nil {
		return r.load(key)
	}
	return r.cache.GetOrLoad(key, func() (Resolved, error) {
		return r.load(key)
	})
}

// Invalidate drops name's cached resolution, if any. Exposed for symmetry
// with the file-backed loaders; elements resolve against the in-process
// code-element map and the tag-name table rather than a watched directory,
// so nothing in this repository calls it from internal/reload today.
func (r *Registry) Invalidate(name string) {
	if r.cache != nil {
		r.cache.Remove(NormalizeKey(name))
	}
}

func (r *Registry) load(key string) (Resolved, error) {
	if ce, ok := r.code[key]; ok {
		return Resolved{Kind: KindCode, Code: ce}, nil
	}
	if r.tagTable != nil && r.tagTable.TagExists(key) {
		return Resolved{Kind: KindField, Field: &FieldElement{
			Name: key,
			Tags: r.tagTable.GetTagsFromName(key),
		}}, nil
	}
	return Resolved{}, fmt.Errorf("element unknown: %s", key)
}

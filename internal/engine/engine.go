// Package engine implements the formatting engine's facade (spec.md
// §4.J): FormatRecord ties together the decision engine (I), the template
// loader (G), the template parser (C), the language filter (D), and the
// element evaluator (F) into the single entry point callers use to render
// a record, mirroring the original's format_record.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bibformat/internal/cache"
	"bibformat/internal/decision"
	"bibformat/internal/elements"
	"bibformat/internal/elements/builtin"
	"bibformat/internal/evaluator"
	"bibformat/internal/formaterror"
	"bibformat/internal/langfilter"
	"bibformat/internal/loader"
	"bibformat/internal/outputformat"
	"bibformat/internal/record"
	"bibformat/internal/stores"
	"bibformat/internal/templatelang"
)

// Engine holds every collaborator a formatting call needs. One Engine is
// built at startup and shared across all concurrent formatting calls; it
// carries no per-call mutable state (spec.md §5).
type Engine struct {
	Store     stores.RecordStore
	KB        stores.KBStore
	KBCache   *cache.PersistedCache[string]
	Registry  *elements.Registry
	Templates *loader.Loader
	Outputs   *outputformat.Loader
	Languages *langfilter.Filter

	ErrorSink formaterror.Sink
	Stats     StatsRecorder
}

// StatsRecorder observes completed FormatRecord calls. internal/metrics's
// Metrics type satisfies this; a nil StatsRecorder is a valid no-op.
type StatsRecorder interface {
	ObserveFormatRecord(d time.Duration)
}

// Request describes one formatRecord call (spec.md §4.J).
type Request struct {
	// RecordID identifies the record to format via Store. Ignored if
	// InlineRecord is set.
	RecordID string
	// InlineRecord, if non-nil, is used instead of looking RecordID up in
	// Store — the xmlRecord override from the original signature.
	InlineRecord *record.Record
	OutputCode   string
	Locale       string
	Verbosity    int
	// TemplateOverride, if non-empty, is used as the template body
	// instead of resolving one through the decision engine — supports
	// previewing template source that hasn't been saved to disk yet.
	TemplateOverride string
}

// Result is what formatRecord returns: the rendered text plus every error
// registered along the way.
type Result struct {
	Text   string
	Errors []*formaterror.FormatError
}

// Options configures New.
type Options struct {
	TemplatesDir  string
	OutputsDir    string
	Locales       []string
	DefaultLocale string
	CacheSize     int

	Store    stores.RecordStore
	KB       stores.KBStore
	TagTable stores.TagNameTable

	ErrorSink formaterror.Sink
	Metrics   cache.Sink
	Stats     StatsRecorder
}

// New wires the engine's collaborators and registers their caches with
// cm, so that cm.ClearCaches (spec.md §4.K) invalidates every one of them.
func New(opts Options, cm *cache.Manager) *Engine {
	size := opts.CacheSize
	if size <= 0 {
		size = 1000
	}

	templateCache := cache.NewPersistedCache[loader.Template]("templates", size, opts.Metrics)
	outputCache := cache.NewPersistedCache[outputformat.OutputFormat]("outputs", size, opts.Metrics)
	elementCache := cache.NewPersistedCache[elements.Resolved]("elements", size, opts.Metrics)
	kbCache := cache.NewPersistedCache[string]("kb", size, opts.Metrics)

	if cm != nil {
		cm.Register(templateCache)
		cm.Register(outputCache)
		cm.Register(elementCache)
		cm.Register(kbCache)
	}

	registry := elements.NewRegistry(opts.TagTable, elementCache)
	builtin.Register(registry)

	return &Engine{
		Store:     opts.Store,
		KB:        opts.KB,
		KBCache:   kbCache,
		Registry:  registry,
		Templates: loader.New(opts.TemplatesDir, templateCache, opts.ErrorSink),
		Outputs:   outputformat.New(opts.OutputsDir, outputCache, opts.ErrorSink),
		Languages: langfilter.New(opts.Locales, opts.DefaultLocale),
		ErrorSink: opts.ErrorSink,
		Stats:     opts.Stats,
	}
}

// FormatRecord runs the full I -> G -> C -> D -> F pipeline for req.
func (e *Engine) FormatRecord(ctx context.Context, req Request) Result {
	start := time.Now()
	collector := &formaterror.Collector{}
	sink := formaterror.Tee(collector, e.ErrorSink)

	result := e.formatRecord(ctx, req, sink, collector)
	if e.Stats != nil {
		e.Stats.ObserveFormatRecord(time.Since(start))
	}
	return result
}

func (e *Engine) formatRecord(ctx context.Context, req Request, sink formaterror.Sink, collector *formaterror.Collector) Result {
	view, ok := e.resolveView(ctx, req, sink)
	if !ok {
		return Result{Errors: collector.Errors}
	}

	var templateCode string
	if req.TemplateOverride != "" {
		templateCode = req.TemplateOverride
	} else {
		of := e.Outputs.Load(req.OutputCode + ".bfo")
		templateFile := decision.Decide(of, view, sink)
		if templateFile == "" {
			return Result{Errors: collector.Errors}
		}
		// The loader doubles every literal '%'; undo that so each one
		// reaches the output once.
		templateCode = strings.ReplaceAll(e.Templates.Load(templateFile).Code, "%%", "%")
	}

	localized := e.Languages.Apply(templateCode, req.Locale)

	ev := evaluator.New(e.Registry, req.Verbosity, sink)
	text, fatal := e.evaluateTemplate(localized, view, ev)
	if fatal != nil {
		return Result{Text: text, Errors: collector.Errors}
	}

	return Result{Text: text, Errors: collector.Errors}
}

func (e *Engine) resolveView(ctx context.Context, req Request, sink formaterror.Sink) (*record.View, bool) {
	if req.InlineRecord != nil {
		return record.NewInlineView(req.InlineRecord), true
	}

	if e.Store != nil {
		status, err := e.Store.RecordExists(ctx, req.RecordID)
		if err != nil || status == stores.StatusAbsent {
			sink.Register(&formaterror.FormatError{
				Code:     formaterror.NoSuchRecord,
				Message:  fmt.Sprintf("no record found for id %s", req.RecordID),
				RecordID: req.RecordID,
			})
			return nil, false
		}
	}

	return record.NewDeferredView(ctx, req.RecordID, e.Store, e.KB, e.KBCache), true
}

// evaluateTemplate scans body once, left to right, splicing each
// invocation's evaluated result back in place without rescanning it
// (spec.md §4.J step 6). A *formaterror.Fatal from the evaluator aborts
// the scan and is returned so the caller knows the text is partial.
func (e *Engine) evaluateTemplate(body string, view *record.View, ev *evaluator.Evaluator) (string, error) {
	var fatal error
	out := templatelang.ScanAndReplace(body, func(inv templatelang.Invocation) string {
		if fatal != nil {
			return ""
		}
		text, err := ev.Eval(inv, view)
		if err != nil {
			fatal = err
			return ""
		}
		return text
	})
	return out, fatal
}

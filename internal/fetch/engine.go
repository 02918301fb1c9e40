package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/narrow/internal/compiler"
	"github.com/roach88/narrow/internal/model"
	"github.com/roach88/narrow/internal/narrow"
	"github.com/roach88/narrow/internal/observability"
	"github.com/roach88/narrow/internal/queryir"
	"github.com/roach88/narrow/internal/querysql"
	"github.com/roach88/narrow/internal/search"
)

// Executor runs lowered SQL and scans message rows.
type Executor interface {
	QueryMessages(ctx context.Context, query string, args []any) ([]model.MessageRow, error)
}

// Backend is everything a fetch reads from storage.
type Backend interface {
	compiler.Directory
	compiler.MuteSource
	narrow.MessageAccess
	Access
	Executor
	Dialect() querysql.Dialect
}

// Request identifies who is asking and what for. Viewer is nil for an
// anonymous web-public query.
type Request struct {
	Realm  model.Realm
	Viewer *model.Viewer
	Narrow narrow.Narrow
}

// Compiled is a narrow compiled onto its base query, before windowing.
type Compiled struct {
	Narrow         narrow.Narrow
	Query          *queryir.Select
	MessageID      queryir.Col
	SQL            string
	Args           []any
	IsSearch       bool
	IsDMNarrow     bool
	IncludeHistory bool
}

// FetchedMessages is a page plus how it was produced. Anchor is nil for
// explicit id fetches.
type FetchedMessages struct {
	PaginationResult
	Anchor         *int64 `json:"anchor"`
	IncludeHistory bool   `json:"include_history"`
	IsSearch       bool   `json:"is_search"`
}

// Engine runs fetches against a Backend.
//
// Thread-safety: an Engine is immutable after New and safe for concurrent
// use. All compile state is per call.
type Engine struct {
	backend        Backend
	search         search.Strategy
	canonicalTopic func(string) string
	metrics        *observability.Metrics
	tracer         trace.Tracer
	ids            RequestIDGenerator
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithSearch selects the full-text search backend.
// Default: search.Stemmed with the english configuration.
func WithSearch(s search.Strategy) EngineOption {
	return func(e *Engine) { e.search = s }
}

// WithTopicCanonicalizer replaces narrow.RenameGeneralChat.
func WithTopicCanonicalizer(fn func(string) string) EngineOption {
	return func(e *Engine) { e.canonicalTopic = fn }
}

// WithMetrics records latency, page sizes and errors.
func WithMetrics(m *observability.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithTracer sets the tracer. Default: the global provider's tracer.
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) { e.tracer = t }
}

// WithRequestIDs sets the request id generator. Default: UUIDv7Generator.
func WithRequestIDs(g RequestIDGenerator) EngineOption {
	return func(e *Engine) { e.ids = g }
}

// New creates an Engine over backend.
func New(backend Backend, opts ...EngineOption) *Engine {
	e := &Engine{
		backend: backend,
		search:  search.Stemmed{Config: search.DefaultConfig},
		tracer:  observability.Tracer(),
		ids:     UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) builder(req Request, messageID queryir.Col) *compiler.Builder {
	return &compiler.Builder{
		Realm:     req.Realm,
		Viewer:    req.Viewer,
		MessageID: messageID,
		Directory: e.backend,
		Mutes:     compiler.MuteExclusion{Directory: e.backend, Mutes: e.backend},
		Search:    e.search,
	}
}

// Compile normalizes and compiles a narrow and lowers it to SQL. It reads
// directory data but never messages.
func (e *Engine) Compile(ctx context.Context, req Request) (c *Compiled, err error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "narrow.compile")
	defer func() {
		observability.EndSpan(span, err)
		e.metrics.ObserveDuration("compile", time.Since(start))
	}()
	return e.compile(ctx, req)
}

func (e *Engine) compile(ctx context.Context, req Request) (*Compiled, error) {
	if req.Viewer == nil && !narrow.IsWebPublicNarrow(req.Narrow) {
		return nil, narrow.BadNarrow("Not logged in: channels:web-public is required")
	}

	normalizer := narrow.Normalizer{Access: e.backend, CanonicalTopic: e.canonicalTopic}
	n, err := normalizer.Normalize(ctx, req.Realm, req.Viewer, req.Narrow)
	if err != nil {
		return nil, err
	}

	includeHistory, err := OkToIncludeHistory(ctx, e.backend, e.backend, req.Realm, req.Viewer, n)
	if err != nil {
		return nil, fmt.Errorf("history policy: %w", err)
	}
	base, err := BaseQuery(ctx, e.backend, req.Realm, req.Viewer, includeHistory)
	if err != nil {
		return nil, err
	}
	compiled, err := e.builder(req, base.MessageID).Compile(ctx, base.Select, n)
	if err != nil {
		return nil, err
	}

	sql, args, err := querysql.Compile(e.backend.Dialect(), compiled.Select)
	if err != nil {
		return nil, &narrow.InternalError{Message: err.Error()}
	}
	return &Compiled{
		Narrow:         n,
		Query:          compiled.Select,
		MessageID:      base.MessageID,
		SQL:            sql,
		Args:           args,
		IsSearch:       compiled.IsSearch,
		IsDMNarrow:     compiled.IsDMNarrow,
		IncludeHistory: includeHistory,
	}, nil
}

// Fetch returns one page of the narrow. With ids, exactly those messages
// are fetched instead: no anchor applies, only the realm's visibility
// floor, and every found flag is false.
func (e *Engine) Fetch(ctx context.Context, req Request, spec AnchorSpec, ids []int64) (res *FetchedMessages, err error) {
	requestID := e.ids.Generate()
	log := slog.With("request_id", requestID)
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, "narrow.fetch", trace.WithAttributes(
		attribute.String("request.id", requestID),
		attribute.Int64("realm.id", req.Realm.ID),
		attribute.Int("narrow.terms", len(req.Narrow)),
		attribute.Bool("web_public", req.Viewer == nil),
	))
	defer func() {
		observability.EndSpan(span, err)
		e.metrics.ObserveDuration("fetch", time.Since(start))
		if err != nil {
			e.metrics.RecordError(narrow.Code(err))
			log.Warn("fetch failed", "error", err, "code", narrow.Code(err))
			return
		}
		e.metrics.ObserveRows(len(res.Rows))
		span.SetAttributes(attribute.Int("fetch.rows", len(res.Rows)))
	}()

	if err := spec.validate(); err != nil {
		return nil, err
	}

	c, err := e.Compile(ctx, req)
	if err != nil {
		return nil, err
	}

	if ids != nil {
		res, err = e.fetchIDs(ctx, req, c, ids)
	} else {
		res, err = e.fetchWindow(ctx, req, c, spec)
	}
	if err != nil {
		return nil, err
	}

	log.Info("fetched messages",
		"rows", len(res.Rows),
		"include_history", res.IncludeHistory,
		"search", res.IsSearch,
		"found_oldest", res.FoundOldest,
		"found_newest", res.FoundNewest,
		"duration", time.Since(start),
	)
	return res, nil
}

func (e *Engine) fetchIDs(ctx context.Context, req Request, c *Compiled, ids []int64) (*FetchedMessages, error) {
	q := c.Query.Filter(queryir.In{Left: c.MessageID, Values: ids}).Ordered(0, queryir.Order{Value: c.MessageID})
	rows, err := e.execute(ctx, q)
	if err != nil {
		return nil, err
	}

	floor := req.Realm.FirstVisibleMessageID
	visible := make([]model.MessageRow, 0, len(rows))
	for _, r := range rows {
		if floor <= 0 || r.ID >= floor {
			visible = append(visible, r)
		}
	}
	return &FetchedMessages{
		PaginationResult: PaginationResult{Rows: visible},
		IncludeHistory:   c.IncludeHistory,
		IsSearch:         c.IsSearch,
	}, nil
}

func (e *Engine) fetchWindow(ctx context.Context, req Request, c *Compiled, spec AnchorSpec) (*FetchedMessages, error) {
	anchor, err := e.resolveAnchor(ctx, req, c, spec.Anchor)
	if err != nil {
		return nil, err
	}

	w := NewWindow(anchor, spec, req.Realm.FirstVisibleMessageID)
	rows, err := e.execute(ctx, PlanWindow(w, c.Query, c.MessageID))
	if err != nil {
		return nil, err
	}
	return &FetchedMessages{
		PaginationResult: PostProcess(w, rows),
		Anchor:           &anchor,
		IncludeHistory:   c.IncludeHistory,
		IsSearch:         c.IsSearch,
	}, nil
}

// resolveAnchor returns anchor, or the viewer's first unread message in
// the narrow when it is nil. Anonymous viewers have nothing unread.
func (e *Engine) resolveAnchor(ctx context.Context, req Request, c *Compiled, anchor *int64) (id int64, err error) {
	if anchor != nil {
		return *anchor, nil
	}
	if req.Viewer == nil {
		return model.MaxSentinel, nil
	}

	ctx, span := e.tracer.Start(ctx, "narrow.first_unread")
	defer func() { observability.EndSpan(span, err) }()

	// The unread flag lives on the per-user rows, so the narrow is
	// compiled again when the page itself reads history.
	base, err := BaseQuery(ctx, e.backend, req.Realm, req.Viewer, false)
	if err != nil {
		return 0, err
	}
	b := e.builder(req, base.MessageID)
	compiled, err := b.Compile(ctx, base.Select, c.Narrow)
	if err != nil {
		return 0, err
	}
	mutes, err := b.Mutes.Conditions(ctx, req.Realm, *req.Viewer, c.Narrow)
	if err != nil {
		return 0, err
	}

	rows, err := e.execute(ctx, FirstUnreadQuery(compiled, base.MessageID, mutes))
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return model.MaxSentinel, nil
	}
	return rows[0].ID, nil
}

func (e *Engine) execute(ctx context.Context, q queryir.Query) (rows []model.MessageRow, err error) {
	ctx, span := e.tracer.Start(ctx, "narrow.execute")
	defer func() { observability.EndSpan(span, err) }()

	sql, args, err := querysql.Compile(e.backend.Dialect(), q)
	if err != nil {
		return nil, &narrow.InternalError{Message: err.Error()}
	}
	slog.Debug("executing narrow query", "sql", sql, "args", len(args))
	rows, err = e.backend.QueryMessages(ctx, sql, args)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	return rows, nil
}

// Package tracing provides a lightweight span-based tracing system that
// propagates trace context through Go contexts. Spans form parent–child trees
// and are logged as structured records via slog. All Span methods accept a
// nil receiver so callers can run with tracing disabled.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type contextKey string

const spanKey contextKey = "trace_span"

// Span represents a timed operation within a trace.
type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Children  []*Span
	Attrs     map[string]any
	mu        sync.Mutex
	// logger is shared by every span of a tree and set from the Tracer.
	logger    *slog.Logger
}

// Tracer creates root spans when enabled and nil spans otherwise.
type Tracer struct {
	enabled bool
	logger  *slog.Logger
}

func NewTracer(enabled bool) *Tracer {
	return &Tracer{
		enabled: enabled,
		logger:  slog.Default().With("component", "tracing"),
	}
}

// StartSpan creates a new root span and stores it in the returned context.
func (t *Tracer) StartSpan(ctx context.Context, name string, traceID string) (context.Context, *Span) {
	if t == nil || !t.enabled {
		return ctx, nil
	}
	span := &Span{
		Name:      name,
		TraceID:   traceID,
		StartTime: time.Now(),
		Attrs:     make(map[string]any),
		logger:    t.logger,
	}
	return context.WithValue(ctx, spanKey, span), span
}

// StartChildSpan creates a child span linked to the parent in ctx. Without a
// parent it returns ctx unchanged and a nil span.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	if parent == nil {
		return ctx, nil
	}
	child := &Span{
		Name:      name,
		TraceID:   parent.TraceID,
		StartTime: time.Now(),
		Attrs:     make(map[string]any),
		logger:    parent.logger,
	}
	parent.mu.Lock()
	parent.Children = append(parent.Children, child)
	parent.mu.Unlock()
	return context.WithValue(ctx, spanKey, child), child
}

// End records the span's end time and duration.
func (s *Span) End() {
	if s == nil {
		return
	}
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
}

// SetAttr attaches a key-value attribute to the span.
func (s *Span) SetAttr(key string, value any) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.Attrs[key] = value
	s.mu.Unlock()
}

// SpanFromContext extracts the current Span from ctx, or nil if none.
func SpanFromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(spanKey).(*Span); ok {
		return span
	}
	return nil
}

// Finish ends a root span and logs the whole tree.
func (s *Span) Finish() {
	if s == nil {
		return
	}
	s.End()
	log := s.logger
	if log == nil {
		log = slog.Default()
	}
	s.logRecursive(log, 0)
}

func (s *Span) logRecursive(log *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_ms", s.Duration.Milliseconds(),
		"depth", depth,
	}
	for k, v := range s.Attrs {
		attrs = append(attrs, k, v)
	}
	children := append([]*Span(nil), s.Children...)
	s.mu.Unlock()
	log.Info("span", attrs...)

	for _, child := range children {
		child.logRecursive(log, depth+1)
	}
}

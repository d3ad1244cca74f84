// Package tracing records in-process span trees for long-running
// operations such as index builds. Spans travel in the context and the
// finished tree is written through slog.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type contextKey struct{}

// Span is one timed step of a trace.
type Span struct {
	Name     string
	TraceID  string
	Start    time.Time
	Duration time.Duration
	Err      error

	mu       sync.Mutex
	children []*Span
	attrs    []any
}

// Start opens a span under the span already in ctx, or a new trace when
// there is none.
func Start(ctx context.Context, name string) (context.Context, *Span) {
	s := &Span{Name: name, Start: time.Now()}
	if parent := FromContext(ctx); parent != nil {
		s.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, s)
		parent.mu.Unlock()
	} else {
		s.TraceID = uuid.NewString()
	}
	return context.WithValue(ctx, contextKey{}, s), s
}

func FromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(contextKey{}).(*Span)
	return s
}

// End stops the clock. err, if non-nil, is reported with the span.
func (s *Span) End(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Duration = time.Since(s.Start)
	s.Err = err
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, key, value)
	s.mu.Unlock()
}

func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

// Log writes the span and its descendants at debug level, parents first.
func (s *Span) Log(logger *slog.Logger) {
	s.log(logger, 0)
}

func (s *Span) log(logger *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := append([]any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"depth", depth,
		"duration", s.Duration,
	}, s.attrs...)
	if s.Err != nil {
		attrs = append(attrs, "error", s.Err)
	}
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()

	logger.Debug("span", attrs...)
	for _, c := range children {
		c.log(logger, depth+1)
	}
}

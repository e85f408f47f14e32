package core

import (
	"context"
	"log"
	"time"
)

// Logger is the minimal logging seam used by the service. Implementations
// must be safe for concurrent use.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// MetricsRecorder aggregates per-operation outcomes.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan finishes a traced operation.
type TraceSpan interface {
	End(err error)
}

type noopLogger struct{}

func (noopLogger) Infof(string, ...any)  {}
func (noopLogger) Warnf(string, ...any)  {}
func (noopLogger) Errorf(string, ...any) {}

// StdLogger adapts the standard library logger to the Logger seam.
type StdLogger struct {
	L *log.Logger
}

// Infof logs at info level.
func (s StdLogger) Infof(format string, args ...any) { s.logf("INFO", format, args...) }

// Warnf logs at warn level.
func (s StdLogger) Warnf(format string, args ...any) { s.logf("WARN", format, args...) }

// Errorf logs at error level.
func (s StdLogger) Errorf(format string, args ...any) { s.logf("ERROR", format, args...) }

func (s StdLogger) logf(level, format string, args ...any) {
	l := s.L
	if l == nil {
		l = log.Default()
	}
	l.Printf(level+" "+format, args...)
}

// observe wraps a service operation with logging, metrics, and tracing.
// Callers invoke the returned func with the operation error once finished.
func (s *Service) observe(ctx context.Context, operation string) (context.Context, func(error)) {
	started := time.Now()
	var span TraceSpan
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operation)
	}
	return ctx, func(err error) {
		duration := time.Since(started)
		if span != nil {
			span.End(err)
		}
		if s.metrics != nil {
			s.metrics.Observe(ctx, operation, err == nil, duration)
		}
		if err != nil {
			s.logger.Warnf("%s failed: %v", operation, err)
		}
	}
}

// Package errreport forwards faults to a structured reporter that classifies
// them, assigns an identifier, and keeps a bounded history for diagnostics.
//
// The rendering core never lets a fault escape its public boundary. Instead
// it hands the fault to a Reporter together with the operation context and
// the recovery strategy it is about to apply, then degrades.
package errreport

import (
	"context"
	"errors"
	"io/fs"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Strategy names the recovery a caller applies after reporting.
type Strategy string

// Recovery strategies. The rendering core only uses Fallback.
const (
	Retry    Strategy = "retry"
	Fallback Strategy = "fallback"
	Ignore   Strategy = "ignore"
	Abort    Strategy = "abort"
)

// Category groups faults by origin.
type Category string

// Fault categories.
const (
	CategoryBackend Category = "backend"
	CategoryRender  Category = "render"
	CategoryContent Category = "content"
	CategoryIO      Category = "io"
	CategoryConfig  Category = "config"
	CategoryTimeout Category = "timeout"
	CategoryUnknown Category = "unknown"
)

// Severity ranks faults.
type Severity string

// Severity levels.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Categorizer lets an error declare its own category.
// Backend and pipeline error types implement it.
type Categorizer interface {
	ErrorCategory() Category
}

// Context describes where a fault happened.
type Context struct {
	Operation string
	Fields    map[string]any
}

// Info is the reporter's record of one fault.
type Info struct {
	ID        string         `json:"errorId"`
	Category  Category       `json:"category"`
	Severity  Severity       `json:"severity"`
	Operation string         `json:"operation"`
	Message   string         `json:"message"`
	Strategy  Strategy       `json:"recoveryStrategy"`
	Fields    map[string]any `json:"fields,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Reporter is the contract the resolver and pipeline depend on.
type Reporter interface {
	HandleError(err error, ctx Context, strategy Strategy) Info
}

// DefaultHistorySize bounds the number of Info records a Structured keeps.
const DefaultHistorySize = 100

// Structured is the default Reporter. Safe for concurrent use.
type Structured struct {
	logger  zerolog.Logger
	mu      sync.Mutex
	history []Info
	limit   int
	counts  map[Category]int
	now     func() time.Time
}

// NewStructured creates a Structured reporter logging through logger.
// A historySize below 1 uses DefaultHistorySize.
func NewStructured(logger zerolog.Logger, historySize int) *Structured {
	if historySize < 1 {
		historySize = DefaultHistorySize
	}
	return &Structured{
		logger: logger,
		limit:  historySize,
		counts: make(map[Category]int),
		now:    time.Now,
	}
}

// HandleError classifies err, logs it, records it, and returns the record.
// A nil err yields an Info with an empty ID and is not recorded.
func (s *Structured) HandleError(err error, ctx Context, strategy Strategy) Info {
	if err == nil {
		return Info{Operation: ctx.Operation, Strategy: strategy}
	}

	category := Classify(err)
	info := Info{
		ID:        uuid.NewString(),
		Category:  category,
		Severity:  severityFor(category, strategy),
		Operation: ctx.Operation,
		Message:   err.Error(),
		Strategy:  strategy,
		Fields:    copyFields(ctx.Fields),
		Timestamp: s.now(),
	}

	s.mu.Lock()
	s.history = append(s.history, info)
	if len(s.history) > s.limit {
		s.history = s.history[len(s.history)-s.limit:]
	}
	s.counts[category]++
	s.mu.Unlock()

	event := s.logger.Warn()
	if info.Severity == SeverityHigh || info.Severity == SeverityCritical {
		event = s.logger.Error()
	}
	event.
		Err(err).
		Str("errorId", info.ID).
		Str("category", string(info.Category)).
		Str("severity", string(info.Severity)).
		Str("operation", info.Operation).
		Str("strategy", string(strategy)).
		Fields(info.Fields).
		Msg("Error handled")

	return info
}

// History returns a copy of the recorded faults, oldest first.
func (s *Structured) History() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Info, len(s.history))
	copy(out, s.history)
	return out
}

// Counts returns the number of faults seen per category.
func (s *Structured) Counts() map[Category]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[Category]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// Classify returns the category for err.
func Classify(err error) Category {
	var c Categorizer
	if errors.As(err, &c) {
		return c.ErrorCategory()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return CategoryTimeout
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return CategoryIO
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return CategoryIO
	}
	return CategoryUnknown
}

func severityFor(c Category, strategy Strategy) Severity {
	if strategy == Abort {
		return SeverityCritical
	}
	switch c {
	case CategoryContent, CategoryTimeout:
		return SeverityLow
	case CategoryBackend, CategoryRender, CategoryIO:
		// Fallback means the caller degraded instead of failing.
		if strategy == Fallback {
			return SeverityMedium
		}
		return SeverityHigh
	case CategoryConfig:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

func copyFields(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Nop discards every fault. Useful where reporting is not wired.
type Nop struct{}

// HandleError implements Reporter.
func (Nop) HandleError(err error, ctx Context, strategy Strategy) Info {
	return Info{Operation: ctx.Operation, Strategy: strategy}
}

// Compile-time interface checks.
var (
	_ Reporter = (*Structured)(nil)
	_ Reporter = Nop{}
)

// --- START OF FINAL REVISED FILE internal/cli/hooks/hooks.go ---
package hooks

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/stackvity/textstore/pkg/textstore"
)

// Step is one handle event as shown in the run summary.
type Step struct {
	Kind     string // "transition" or "commit"
	From     textstore.State
	To       textstore.State
	Source   string
	Units    int
	Lossy    bool
	Changed  bool
	Duration time.Duration
}

// Step kinds.
const (
	KindTransition = "transition"
	KindCommit     = "commit"
)

// CLIHooks implements textstore.Hooks, logging handle events and recording
// them for the final summary.
type CLIHooks struct {
	logger         *slog.Logger
	verboseEnabled bool
	mu             sync.Mutex
	steps          []Step
}

// NewCLIHooks creates a new CLIHooks instance. A nil logger discards output.
func NewCLIHooks(logger *slog.Logger, verboseEnabled bool) *CLIHooks {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CLIHooks{logger: logger, verboseEnabled: verboseEnabled}
}

// OnTransition implements textstore.Hooks.
func (h *CLIHooks) OnTransition(event textstore.TransitionEvent) error {
	h.record(Step{
		Kind:     KindTransition,
		From:     event.From,
		To:       event.To,
		Source:   event.Source,
		Units:    event.Units,
		Lossy:    event.Lossy,
		Duration: event.Duration,
	})

	attrs := []any{
		slog.String("handle", event.HandleID),
		slog.String("from", event.From.String()),
		slog.String("to", event.To.String()),
		slog.Int("units", event.Units),
	}
	if event.Duration > 0 {
		attrs = append(attrs, slog.Duration("duration", event.Duration))
	}
	switch {
	case event.Lossy:
		// Substitutions are reported even without --verbose.
		h.logger.Warn("Characters were substituted during conversion", append(attrs, slog.String("source", event.Source))...)
	case h.verboseEnabled:
		h.logger.Info("Representation changed", attrs...)
	}
	return nil
}

// OnCommit implements textstore.Hooks.
func (h *CLIHooks) OnCommit(event textstore.CommitEvent) error {
	h.record(Step{Kind: KindCommit, To: event.State, Source: event.Source, Changed: event.Changed})
	if h.verboseEnabled {
		h.logger.Info("Data committed",
			slog.String("handle", event.HandleID),
			slog.String("state", event.State.String()),
			slog.Bool("changed", event.Changed),
			slog.String("source", event.Source))
	}
	return nil
}

// Steps returns a copy of the recorded events in order.
func (h *CLIHooks) Steps() []Step {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Step, len(h.steps))
	copy(out, h.steps)
	return out
}

// Lossy reports whether any recorded conversion substituted characters.
func (h *CLIHooks) Lossy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.steps {
		if s.Lossy {
			return true
		}
	}
	return false
}

func (h *CLIHooks) record(s Step) {
	h.mu.Lock()
	h.steps = append(h.steps, s)
	h.mu.Unlock()
}

var _ textstore.Hooks = (*CLIHooks)(nil)

// --- END OF FINAL REVISED FILE internal/cli/hooks/hooks.go ---

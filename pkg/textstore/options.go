// --- START OF FINAL REVISED FILE pkg/textstore/options.go ---
package textstore

import (
	"log/slog"
	"time"

	"github.com/stackvity/textstore/pkg/textstore/encoding"
	"github.com/stackvity/textstore/pkg/textstore/tempfile"
)

// TransitionEvent describes a completed change of representation.
type TransitionEvent struct {
	HandleID string
	From     State
	To       State
	Source   string // authoritative path after the transition
	Units    int    // length of the produced data, in bytes or code units
	Lossy    bool   // the codec had to substitute characters
	Duration time.Duration
}

// CommitEvent describes a consumer commit (CommitFile, CommitFileAs, CommitBuffer).
type CommitEvent struct {
	HandleID string
	State    State
	Source   string
	Changed  bool
}

// Hooks defines callbacks for a Handle's lifecycle events. Errors returned by
// hooks are logged and never change the outcome of the operation.
// A Handle is single-threaded, so implementations are called from one goroutine
// per handle; a Hooks value shared across handles must be thread-safe.
type Hooks interface {
	OnTransition(event TransitionEvent) error
	OnCommit(event CommitEvent) error
}

// NoOpHooks provides a default, do-nothing implementation of the Hooks interface.
type NoOpHooks struct{}

// OnTransition implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnTransition(event TransitionEvent) error { return nil }

// OnCommit implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnCommit(event CommitEvent) error { return nil }

// Options configures a Handle.
type Options struct {
	// --- Encoding ---
	Codepage encoding.Codepage `mapstructure:"codepage"` // Narrow codepage (0 = encoding.DefaultCodepage)
	Codec    encoding.Codec    `mapstructure:"-"`        // Optional: overrides the converter built from Codepage; it receives its own copy of file content

	// --- Temporary artifacts ---
	TempDir    string         `mapstructure:"tempDir"`    // Directory for temporary files ("" = os.TempDir())
	TempPrefix string         `mapstructure:"tempPrefix"` // File name prefix ("" = DefaultTempPrefix)
	Namer      tempfile.Namer `mapstructure:"-"`          // Optional: overrides the DirNamer built from TempDir/TempPrefix
	Overwrite  bool           `mapstructure:"overwrite"`  // The first committed file replaces the caller's source in place

	// --- Limits ---
	MaxBufferBytes int64 `mapstructure:"-"` // Largest conversion destination in bytes (0 = unlimited)

	// --- Injected Dependencies ---
	Hooks  Hooks        `mapstructure:"-"` // Optional: lifecycle callbacks (nil = NoOpHooks)
	Logger slog.Handler `mapstructure:"-"` // Optional: logging backend (nil = discard)
}

// --- END OF FINAL REVISED FILE pkg/textstore/options.go ---

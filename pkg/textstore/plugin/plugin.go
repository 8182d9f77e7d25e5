// --- START OF FINAL REVISED FILE pkg/textstore/plugin/plugin.go ---
package plugin

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// --- Constants ---

// PluginSchemaVersion is the version of the JSON exchanged with plugins.
// Output carrying another version is rejected.
const PluginSchemaVersion = "1.0"

// Modes select how a plugin receives the text.
const (
	ModeFile   = "file"   // The plugin reads sourcePath and writes its result to destPath.
	ModeBuffer = "buffer" // The plugin receives the text in the input JSON and returns it in the output JSON.
)

// Encodings select which form of the text a plugin works on.
const (
	EncodingNarrow = "narrow" // Bytes in the handle's codepage (base64 "bytes" field in buffer mode).
	EncodingWide   = "wide"   // UTF-16 (UTF-16LE file with BOM, or the "content" string in buffer mode).
)

// --- Errors ---

// ErrPluginExecution is the base of every error a PluginRunner returns. The
// plugin's stderr goes to the runner's log, not into the error.
var ErrPluginExecution = errors.New("plugin execution failed")

// The specific failures below are always wrapped together with
// ErrPluginExecution (see WrapPluginError).
var (
	// ErrPluginTimeout: the run context expired or was cancelled before the process finished.
	ErrPluginTimeout = errors.New("plugin execution timed out")
	// ErrPluginNonZeroExit: the process exited with a failure status.
	ErrPluginNonZeroExit = errors.New("plugin exited non-zero")
	// ErrPluginBadOutput: stdout was empty, not JSON, of another schema version, carried a
	// negative or inconsistent change count, or the plugin set the "error" field.
	ErrPluginBadOutput = errors.New("plugin returned invalid output or reported error")
)

// ErrPluginConfig indicates an invalid PluginConfig (empty command, unknown mode or encoding).
var ErrPluginConfig = errors.New("invalid plugin configuration")

// --- Wire types ---

// PluginConfig is one entry of the "plugins" configuration map.
type PluginConfig struct {
	Name     string                 `mapstructure:"name"`     // User-defined name for logging/identification.
	Enabled  bool                   `mapstructure:"enabled"`  // Whether this plugin instance is active.
	Command  []string               `mapstructure:"command"`  // Command and arguments. Runner MUST execute command[0] with command[1:] directly, without shell interpretation.
	Mode     string                 `mapstructure:"mode"`     // ModeFile (default) or ModeBuffer.
	Encoding string                 `mapstructure:"encoding"` // EncodingNarrow (default) or EncodingWide.
	Config   map[string]interface{} `mapstructure:"config"`   // Plugin-specific configuration passed via PluginInput.
	Timeout  time.Duration          `mapstructure:"-"`        // Per-run limit applied by Apply (0 = only the caller's context).
}

// Normalized returns a copy of c with default mode and encoding filled in.
func (c PluginConfig) Normalized() PluginConfig {
	if c.Mode == "" {
		c.Mode = ModeFile
	}
	if c.Encoding == "" {
		c.Encoding = EncodingNarrow
	}
	return c
}

// Validate checks a normalized configuration.
func (c PluginConfig) Validate() error {
	if len(c.Command) == 0 || c.Command[0] == "" {
		return fmt.Errorf("%w: plugin '%s': command cannot be empty", ErrPluginConfig, c.Name)
	}
	if c.Mode != ModeFile && c.Mode != ModeBuffer {
		return fmt.Errorf("%w: plugin '%s': unknown mode %q (expected %q or %q)", ErrPluginConfig, c.Name, c.Mode, ModeFile, ModeBuffer)
	}
	if c.Encoding != EncodingNarrow && c.Encoding != EncodingWide {
		return fmt.Errorf("%w: plugin '%s': unknown encoding %q (expected %q or %q)", ErrPluginConfig, c.Name, c.Encoding, EncodingNarrow, EncodingWide)
	}
	return nil
}

// PluginInput is written to the plugin's stdin as JSON.
type PluginInput struct {
	SchemaVersion string                 `json:"$schemaVersion"`       // Must match PluginSchemaVersion constant.
	Mode          string                 `json:"mode"`                 // ModeFile or ModeBuffer.
	Encoding      string                 `json:"encoding"`             // EncodingNarrow or EncodingWide.
	Codepage      int                    `json:"codepage"`             // Codepage of narrow data.
	SourcePath    string                 `json:"sourcePath,omitempty"` // File modes: the file to read.
	DestPath      string                 `json:"destPath,omitempty"`   // File modes: the file to write a changed version to.
	Content       string                 `json:"content,omitempty"`    // Wide buffer mode: the text.
	Bytes         []byte                 `json:"bytes,omitempty"`      // Narrow buffer mode: the raw bytes (base64 in JSON).
	Config        map[string]interface{} `json:"config"`               // Plugin-specific configuration from PluginConfig.Config field.
}

// PluginOutput is read from the plugin's stdout as JSON.
type PluginOutput struct {
	SchemaVersion string `json:"$schemaVersion"`     // Schema version the plugin adheres to. Runner MUST check compatibility against PluginSchemaVersion.
	Error         string `json:"error,omitempty"`    // If non-empty, indicates a functional error reported by the plugin.
	Changed       int    `json:"changed"`            // Number of edits made. Zero means the text MUST be kept as it was.
	Content       string `json:"content,omitempty"`  // Wide buffer mode: the new text when Changed > 0.
	Bytes         []byte `json:"bytes,omitempty"`    // Narrow buffer mode: the new bytes when Changed > 0.
	Encoding      string `json:"encoding,omitempty"` // File modes, optional: the encoding destPath was written in.
}

// --- Interfaces ---

// PluginRunner executes external plugins. Apply only talks to this interface;
// internal/cli/runner provides the os/exec implementation and tests use a mock.
// Failures wrap ErrPluginExecution and, where one fits, one of ErrPluginTimeout,
// ErrPluginNonZeroExit or ErrPluginBadOutput.
type PluginRunner interface {
	// Run executes one plugin to completion or until ctx is done. A returned
	// output has the current schema version and an empty Error field.
	Run(ctx context.Context, pluginConfig PluginConfig, input PluginInput) (PluginOutput, error)
}

// Errorf formats a runner failure that has no more specific cause.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrPluginExecution}, args...)...)
}

// WrapPluginError returns an error matching both ErrPluginExecution and kind.
func WrapPluginError(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s: %w", ErrPluginExecution, fmt.Sprintf(format, args...), kind)
}

// --- END OF FINAL REVISED FILE pkg/textstore/plugin/plugin.go ---

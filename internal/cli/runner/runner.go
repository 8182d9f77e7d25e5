// --- START OF FINAL REVISED FILE internal/cli/runner/runner.go ---
// Package runner executes textstore plugins as external processes that speak
// JSON over stdin and stdout.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/stackvity/textstore/pkg/textstore/plugin"
)

const (
	// maxLogOutputBytes limits how much of an unparsable stdout ends up in logs.
	maxLogOutputBytes = 1024
	// maxPluginReadBytes caps the stdout and stderr captured from one plugin run.
	maxPluginReadBytes = 10 * 1024 * 1024
)

var errStdoutLimit = fmt.Errorf("plugin stdout exceeded limit of %d bytes", maxPluginReadBytes)

// execPluginRunner implements plugin.PluginRunner using os/exec.
type execPluginRunner struct {
	logger *slog.Logger
}

// NewExecPluginRunner creates a runner that starts each plugin as a child
// process. The command is executed directly, never through a shell.
func NewExecPluginRunner(loggerHandler slog.Handler) plugin.PluginRunner { // minimal comment
	if loggerHandler == nil {
		loggerHandler = slog.NewTextHandler(io.Discard, nil)
	}
	return &execPluginRunner{logger: slog.New(loggerHandler).With(slog.String("component", "pluginRunner"))}
}

// capture is what one run produced on its pipes.
type capture struct {
	writeErr  error
	stdout    []byte
	stdoutErr error
	stderr    string
}

// Run implements plugin.PluginRunner.
func (r *execPluginRunner) Run(ctx context.Context, cfg plugin.PluginConfig, input plugin.PluginInput) (plugin.PluginOutput, error) {
	logArgs := []any{
		slog.String("plugin", cfg.Name),
		slog.String("mode", input.Mode),
		slog.String("encoding", input.Encoding),
	}
	if input.SourcePath != "" {
		logArgs = append(logArgs, slog.String("source", input.SourcePath))
	}

	if len(cfg.Command) == 0 || cfg.Command[0] == "" {
		r.logger.Error("Plugin configuration error", append(logArgs, slog.String("error", "empty command"))...)
		return plugin.PluginOutput{}, plugin.WrapPluginError(plugin.ErrPluginConfig, "plugin '%s' has no command", cfg.Name)
	}

	input.SchemaVersion = plugin.PluginSchemaVersion
	inputJSON, err := json.Marshal(input)
	if err != nil {
		r.logger.Error("Failed to marshal plugin input JSON", append(logArgs, slog.Any("error", err))...)
		return plugin.PluginOutput{}, plugin.Errorf("failed to marshal input for plugin '%s': %w", cfg.Name, err)
	}

	cmd := exec.CommandContext(ctx, cfg.Command[0], cfg.Command[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return plugin.PluginOutput{}, plugin.Errorf("failed to create stdin pipe for plugin '%s': %w", cfg.Name, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return plugin.PluginOutput{}, plugin.Errorf("failed to create stdout pipe for plugin '%s': %w", cfg.Name, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return plugin.PluginOutput{}, plugin.Errorf("failed to create stderr pipe for plugin '%s': %w", cfg.Name, err)
	}

	if err := cmd.Start(); err != nil {
		r.logger.Error("Failed to start plugin process",
			append(logArgs, slog.String("command", strings.Join(cfg.Command, " ")), slog.Any("error", err))...)
		return plugin.PluginOutput{}, plugin.Errorf("failed to start plugin '%s' command '%s': %w", cfg.Name, cfg.Command[0], err)
	}
	r.logger.Debug("Plugin process started", logArgs...)

	got := r.exchange(inputJSON, stdin, stdout, stderr, logArgs)
	waitErr := cmd.Wait()
	if got.stderr != "" {
		logArgs = append(logArgs, slog.String("plugin_stderr", got.stderr))
	}

	if ctx.Err() != nil {
		r.logger.Error("Plugin execution cancelled or timed out", append(logArgs, slog.Any("error", ctx.Err()))...)
		return plugin.PluginOutput{}, plugin.WrapPluginError(plugin.ErrPluginTimeout, "plugin '%s' cancelled or timed out: %v", cfg.Name, ctx.Err())
	}
	if waitErr != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		r.logger.Error("Plugin exited with an error", append(logArgs, slog.Int("exitCode", exitCode), slog.Any("error", waitErr))...)
		return plugin.PluginOutput{}, plugin.WrapPluginError(plugin.ErrPluginNonZeroExit, "plugin '%s' failed with exit code %d: %v", cfg.Name, exitCode, waitErr)
	}
	if got.writeErr != nil && !isClosedPipe(got.writeErr) {
		r.logger.Error("Plugin failed due to stdin write error", append(logArgs, slog.Any("error", got.writeErr))...)
		return plugin.PluginOutput{}, plugin.Errorf("failed writing input to plugin '%s': %w", cfg.Name, got.writeErr)
	}

	return r.decode(cfg, got, logArgs)
}

// exchange writes the input and drains both output pipes concurrently so a
// plugin blocked on a full pipe cannot deadlock the run.
func (r *execPluginRunner) exchange(inputJSON []byte, stdin io.WriteCloser, stdout, stderr io.Reader, logArgs []any) capture {
	var got capture
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		_, got.writeErr = stdin.Write(inputJSON)
		if closeErr := stdin.Close(); closeErr != nil && !isClosedPipe(closeErr) {
			r.logger.Warn("Error closing plugin stdin pipe", append(logArgs, slog.Any("error", closeErr))...)
		}
	}()

	go func() {
		defer wg.Done()
		data, truncated, err := readLimited(stdout)
		got.stdout = data
		switch {
		case truncated:
			r.logger.Warn("Plugin stdout truncated", append(logArgs, slog.Int64("limit_bytes", maxPluginReadBytes))...)
			got.stdoutErr = errStdoutLimit
		case err != nil:
			r.logger.Warn("Error reading plugin stdout", append(logArgs, slog.Any("error", err))...)
			got.stdoutErr = err
		}
	}()

	go func() {
		defer wg.Done()
		data, truncated, err := readLimited(stderr)
		if truncated {
			r.logger.Warn("Plugin stderr truncated", append(logArgs, slog.Int64("limit_bytes", maxPluginReadBytes))...)
		} else if err != nil {
			r.logger.Warn("Error reading plugin stderr", append(logArgs, slog.Any("error", err))...)
		}
		got.stderr = strings.TrimSpace(string(data))
	}()

	wg.Wait()
	return got
}

// decode turns the captured stdout of a successful process into its output.
func (r *execPluginRunner) decode(cfg plugin.PluginConfig, got capture, logArgs []any) (plugin.PluginOutput, error) {
	if got.stdoutErr != nil {
		r.logger.Error("Failed to read plugin stdout", append(logArgs, slog.Any("error", got.stdoutErr))...)
		return plugin.PluginOutput{}, plugin.WrapPluginError(plugin.ErrPluginBadOutput, "reading stdout of plugin '%s': %v", cfg.Name, got.stdoutErr)
	}
	if len(got.stdout) == 0 {
		r.logger.Error("Plugin returned empty output", logArgs...)
		return plugin.PluginOutput{}, plugin.WrapPluginError(plugin.ErrPluginBadOutput, "plugin '%s' returned empty stdout", cfg.Name)
	}

	var output plugin.PluginOutput
	if err := json.Unmarshal(got.stdout, &output); err != nil {
		prefix := string(got.stdout)
		if len(prefix) > maxLogOutputBytes {
			prefix = prefix[:maxLogOutputBytes] + "... (truncated)"
		}
		r.logger.Error("Failed to unmarshal plugin output JSON", append(logArgs, slog.Any("error", err), slog.String("stdout_prefix", prefix))...)
		return plugin.PluginOutput{}, plugin.WrapPluginError(plugin.ErrPluginBadOutput, "failed to unmarshal JSON output from plugin '%s': %v", cfg.Name, err)
	}
	if output.SchemaVersion != plugin.PluginSchemaVersion {
		r.logger.Error("Plugin schema version mismatch",
			append(logArgs, slog.String("expected_schema", plugin.PluginSchemaVersion), slog.String("plugin_schema", output.SchemaVersion))...)
		return plugin.PluginOutput{}, plugin.WrapPluginError(plugin.ErrPluginBadOutput,
			"plugin '%s' uses incompatible schema version '%s', expected '%s'", cfg.Name, output.SchemaVersion, plugin.PluginSchemaVersion)
	}
	if output.Error != "" {
		r.logger.Error("Plugin reported functional error", append(logArgs, slog.String("plugin_error", output.Error))...)
		return plugin.PluginOutput{}, plugin.WrapPluginError(plugin.ErrPluginBadOutput, "plugin '%s' reported error: %s", cfg.Name, output.Error)
	}

	r.logger.Debug("Plugin finished successfully", append(logArgs, slog.Int("changed", output.Changed))...)
	return output, nil
}

// readLimited reads up to maxPluginReadBytes and drains the rest.
func readLimited(rd io.Reader) ([]byte, bool, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(rd, maxPluginReadBytes))
	if err != nil && !isClosedPipe(err) {
		return buf.Bytes(), false, err
	}
	if n >= maxPluginReadBytes {
		extra, _ := io.Copy(io.Discard, rd)
		return buf.Bytes(), extra > 0, nil
	}
	return buf.Bytes(), false, nil
}

func isClosedPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe) ||
		strings.Contains(err.Error(), "file already closed")
}

// --- END OF FINAL REVISED FILE internal/cli/runner/runner.go ---

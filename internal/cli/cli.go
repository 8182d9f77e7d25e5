package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/stackvity/textstore/internal/cli/config"
	"github.com/stackvity/textstore/internal/cli/hooks"
	"github.com/stackvity/textstore/internal/cli/runner"
	"github.com/stackvity/textstore/internal/cli/ui"
	"github.com/stackvity/textstore/pkg/textstore"
	"github.com/stackvity/textstore/pkg/textstore/encoding"
	"github.com/stackvity/textstore/pkg/textstore/mapped"
	"github.com/stackvity/textstore/pkg/textstore/plugin"
	"github.com/stackvity/textstore/pkg/textstore/transcode"
)

// Commands.
const (
	CommandUTF8    = "utf8"
	CommandConvert = "convert"
	CommandUnpack  = "unpack"
)

// Conversion targets accepted by the convert command.
const (
	TargetFileNarrow = "file-narrow"
	TargetFileWide   = "file-wide"
)

// ErrBinaryInput is returned when the input looks binary and --force was not given.
var ErrBinaryInput = errors.New("input appears to be binary")

// ErrUsage reports an invalid combination of command-line arguments.
var ErrUsage = errors.New("invalid usage")

// Request is one CLI invocation.
type Request struct {
	Command string
	Input   string
	Output  string
	InPlace bool
	Target  string   // convert: TargetFileNarrow or TargetFileWide
	Plugins []string // unpack: plugin names; empty applies every enabled plugin
	Runner  plugin.PluginRunner
}

// Run executes req and prints the run summary to out.
func Run(ctx context.Context, cfg config.Config, req Request, logger *slog.Logger, out io.Writer) error {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	start := time.Now()
	cliHooks := hooks.NewCLIHooks(logger, cfg.Verbose)

	final, cp, err := run(ctx, cfg, req, cliHooks, logger)
	summary := ui.Summary{
		Command:  req.Command,
		Input:    req.Input,
		Output:   final,
		Codepage: int(cp),
		Steps:    cliHooks.Steps(),
		Lossy:    cliHooks.Lossy(),
		Duration: time.Since(start),
		Err:      err,
	}
	if printErr := ui.Print(out, summary); printErr != nil {
		logger.Warn("Failed to print summary", slog.Any("error", printErr))
	}
	return err
}

func run(ctx context.Context, cfg config.Config, req Request, cliHooks *hooks.CLIHooks, logger *slog.Logger) (string, encoding.Codepage, error) {
	dest, err := destination(req)
	if err != nil {
		return "", 0, err
	}
	if err := checkText(req.Input, cfg.Force); err != nil {
		return "", 0, err
	}

	opts := cfg.HandleOptions()
	opts.Hooks = cliHooks
	if !req.InPlace {
		// The caller's input is only ever replaced by --in-place runs.
		opts.Overwrite = false
	}
	if opts.TempDir == "" {
		// Keep temporary files on the destination's file system so delivery is a rename.
		opts.TempDir = filepath.Dir(dest)
	}
	var h *textstore.Handle
	if cfg.DetectEncoding {
		h, err = textstore.NewFile(req.Input, opts)
	} else {
		h, err = textstore.NewNarrowFile(req.Input, opts)
	}
	if err != nil {
		return "", 0, err
	}
	cp := h.Codepage()
	logger.Debug("Input opened", slog.String("input", req.Input), slog.String("state", h.State().String()), slog.Int("codepage", int(cp)))

	result, err := process(ctx, cfg, req, h, logger)
	owned := h.Source()
	if closeErr := h.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		// At most one handle-owned file exists: the current source.
		if owned != req.Input {
			_ = os.Remove(owned)
		}
		return "", cp, err
	}

	if err := deliver(result, req.Input, dest); err != nil {
		return "", cp, err
	}
	logger.Info("Output written", slog.String("command", req.Command), slog.String("output", dest))
	return dest, cp, nil
}

// process runs the command on h and returns the path holding the result.
func process(ctx context.Context, cfg config.Config, req Request, h *textstore.Handle, logger *slog.Logger) (string, error) {
	switch req.Command {
	case CommandUTF8:
		return h.TranscodeToUTF8(cfg.WriteBOM, transcode.WithProgress(func(c transcode.ChunkStats) {
			logger.Debug("Chunk transcoded", slog.Int("chunk", c.Index), slog.Int("offset", c.Offset), slog.Int("in", c.In), slog.Int("out", c.Out))
		}))
	case CommandConvert:
		if req.Target == TargetFileWide {
			return h.AsFileWide()
		}
		return h.AsFileNarrow()
	case CommandUnpack:
		return unpack(ctx, cfg, req, h, logger)
	}
	return "", fmt.Errorf("%w: unknown command %q", ErrUsage, req.Command)
}

func unpack(ctx context.Context, cfg config.Config, req Request, h *textstore.Handle, logger *slog.Logger) (string, error) {
	pluginRunner := req.Runner
	if pluginRunner == nil {
		pluginRunner = runner.NewExecPluginRunner(cfg.Logger)
	}

	var cfgs []plugin.PluginConfig
	if len(req.Plugins) == 0 {
		for _, name := range cfg.PluginNames() {
			cfgs = append(cfgs, cfg.Plugins[name])
		}
	} else {
		for _, name := range req.Plugins {
			p, err := cfg.Plugin(name)
			if err != nil {
				return "", err
			}
			// Naming a plugin on the command line enables it.
			p.Enabled = true
			cfgs = append(cfgs, p)
		}
	}

	results, err := plugin.ApplyAll(ctx, h, pluginRunner, cfgs)
	for _, res := range results {
		logger.Info("Plugin applied", slog.String("plugin", res.Plugin), slog.Int("changes", res.Changes), slog.Duration("duration", res.Duration))
	}
	if err != nil {
		return "", err
	}

	// The result is stored back in the encoding the input came in.
	if h.OriginalEncoding() == textstore.EncodingWide {
		return h.AsFileWide()
	}
	return h.AsFileNarrow()
}

// destination returns where the result goes.
func destination(req Request) (string, error) {
	if req.Input == "" {
		return "", fmt.Errorf("%w: an input file is required", ErrUsage)
	}
	if req.Command == CommandConvert && req.Target != TargetFileNarrow && req.Target != TargetFileWide {
		return "", fmt.Errorf("%w: unknown target %q (expected %q or %q)", ErrUsage, req.Target, TargetFileNarrow, TargetFileWide)
	}
	switch {
	case req.InPlace && req.Output != "":
		return "", fmt.Errorf("%w: --output and --in-place are mutually exclusive", ErrUsage)
	case req.InPlace:
		return req.Input, nil
	case req.Output == "":
		return "", fmt.Errorf("%w: an output file is required (or --in-place)", ErrUsage)
	}
	return req.Output, nil
}

// checkText refuses binary input unless forced.
func checkText(path string, force bool) error {
	var binary bool
	err := mapped.ReadAll(path, func(content []byte) error {
		binary = encoding.IsBinary(content)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", textstore.ErrIOFailure, err)
	}
	if binary && !force {
		return fmt.Errorf("%w: %s (use --force to process it anyway)", ErrBinaryInput, path)
	}
	return nil
}

// deliver puts the result at dest. A result the handle derived is moved;
// the unchanged input is copied.
func deliver(result, input, dest string) error {
	if result == dest {
		return nil
	}
	if result != input {
		if err := os.Rename(result, dest); err == nil {
			return nil
		}
		defer os.Remove(result)
	}
	if err := copyFile(result, dest); err != nil {
		return fmt.Errorf("%w: deliver %s: %w", textstore.ErrIOFailure, dest, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

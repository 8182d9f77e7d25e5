package plugin

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf16"

	"github.com/stackvity/textstore/pkg/textstore"
)

// Result summarises one plugin application.
type Result struct {
	Plugin   string
	Changes  int
	Changed  bool
	State    textstore.State
	Source   string
	Duration time.Duration
}

// Apply runs one plugin over the text in h. The handle is first brought into
// the representation the plugin asks for; the plugin's edit count and data
// are then fed back and committed. A plugin reporting no changes leaves the
// data untouched and its destination file deleted. When the plugin fails, the
// destination file is deleted and the handle keeps its last valid data.
func Apply(ctx context.Context, h *textstore.Handle, runner PluginRunner, cfg PluginConfig) (Result, error) {
	cfg = cfg.Normalized()
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	start := time.Now()

	input := PluginInput{
		SchemaVersion: PluginSchemaVersion,
		Mode:          cfg.Mode,
		Encoding:      cfg.Encoding,
		Codepage:      int(h.ContentCodepage()),
		Config:        cfg.Config,
	}
	if err := prepare(h, cfg, &input); err != nil {
		return Result{}, fmt.Errorf("prepare input for plugin '%s': %w", cfg.Name, err)
	}

	runCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	output, err := runner.Run(runCtx, cfg, input)
	if err == nil {
		err = checkOutput(cfg, output)
	}
	if err != nil {
		if cfg.Mode == ModeFile {
			if discardErr := h.DiscardDest(); discardErr != nil {
				err = errors.Join(err, discardErr)
			}
		}
		return Result{}, err
	}

	h.AddChanges(output.Changed)
	if err := commit(h, cfg, output); err != nil {
		return Result{}, fmt.Errorf("commit result of plugin '%s': %w", cfg.Name, err)
	}

	return Result{
		Plugin:   cfg.Name,
		Changes:  output.Changed,
		Changed:  output.Changed > 0,
		State:    h.State(),
		Source:   h.Source(),
		Duration: time.Since(start),
	}, nil
}

// ApplyAll applies the enabled plugins in order and stops at the first failure.
func ApplyAll(ctx context.Context, h *textstore.Handle, runner PluginRunner, cfgs []PluginConfig) ([]Result, error) {
	results := make([]Result, 0, len(cfgs))
	for _, cfg := range cfgs {
		if !cfg.Enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := Apply(ctx, h, runner, cfg)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// checkOutput rejects output that cannot be committed.
func checkOutput(cfg PluginConfig, output PluginOutput) error {
	if output.Changed < 0 {
		return WrapPluginError(ErrPluginBadOutput, "plugin '%s' reported a negative change count (%d)", cfg.Name, output.Changed)
	}
	switch output.Encoding {
	case "", EncodingNarrow, EncodingWide:
	default:
		return WrapPluginError(ErrPluginBadOutput, "plugin '%s' reported unknown encoding %q", cfg.Name, output.Encoding)
	}
	if output.Encoding != "" && cfg.Mode == ModeBuffer && output.Encoding != cfg.Encoding {
		return WrapPluginError(ErrPluginBadOutput, "plugin '%s' cannot change encoding in buffer mode", cfg.Name)
	}
	return nil
}

func prepare(h *textstore.Handle, cfg PluginConfig, input *PluginInput) error {
	switch {
	case cfg.Mode == ModeFile:
		var src string
		var err error
		if cfg.Encoding == EncodingWide {
			src, err = h.AsFileWide()
		} else {
			src, err = h.AsFileNarrow()
		}
		if err != nil {
			return err
		}
		dst, err := h.DestPath()
		if err != nil {
			return err
		}
		input.SourcePath, input.DestPath = src, dst
	case cfg.Encoding == EncodingWide:
		units, err := h.AsBufferWide()
		if err != nil {
			return err
		}
		input.Content = string(utf16.Decode(units))
	default:
		data, err := h.AsBufferNarrow()
		if err != nil {
			return err
		}
		input.Bytes = data
	}
	return nil
}

func commit(h *textstore.Handle, cfg PluginConfig, output PluginOutput) error {
	if cfg.Mode == ModeFile {
		enc := cfg.Encoding
		if output.Encoding != "" {
			enc = output.Encoding
		}
		if enc == EncodingWide {
			return h.CommitFileAs(textstore.EncodingWide)
		}
		return h.CommitFileAs(textstore.EncodingNarrow)
	}

	if output.Changed > 0 {
		var err error
		if cfg.Encoding == EncodingWide {
			err = h.ReplaceBufferWide(utf16.Encode([]rune(output.Content)))
		} else {
			data := output.Bytes
			if data == nil {
				data = []byte{}
			}
			err = h.ReplaceBufferNarrow(data)
		}
		if err != nil {
			return err
		}
	}
	return h.CommitBuffer()
}

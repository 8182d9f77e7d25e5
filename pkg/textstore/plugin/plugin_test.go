package plugin_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stackvity/textstore/pkg/textstore/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPluginConfig_Normalized(t *testing.T) {
	cfg := plugin.PluginConfig{Name: "p", Command: []string{"x"}}.Normalized()
	assert.Equal(t, plugin.ModeFile, cfg.Mode)
	assert.Equal(t, plugin.EncodingNarrow, cfg.Encoding)

	cfg = plugin.PluginConfig{Mode: plugin.ModeBuffer, Encoding: plugin.EncodingWide}.Normalized()
	assert.Equal(t, plugin.ModeBuffer, cfg.Mode)
	assert.Equal(t, plugin.EncodingWide, cfg.Encoding)
}

func TestPluginConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     plugin.PluginConfig
		wantErr bool
	}{
		{"valid", plugin.PluginConfig{Command: []string{"tool"}, Mode: plugin.ModeFile, Encoding: plugin.EncodingNarrow}, false},
		{"empty command", plugin.PluginConfig{Mode: plugin.ModeFile, Encoding: plugin.EncodingNarrow}, true},
		{"blank executable", plugin.PluginConfig{Command: []string{""}, Mode: plugin.ModeFile, Encoding: plugin.EncodingNarrow}, true},
		{"unknown mode", plugin.PluginConfig{Command: []string{"tool"}, Mode: "stream", Encoding: plugin.EncodingNarrow}, true},
		{"unknown encoding", plugin.PluginConfig{Command: []string{"tool"}, Mode: plugin.ModeBuffer, Encoding: "utf8"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, plugin.ErrPluginConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWrapPluginError(t *testing.T) {
	err := plugin.WrapPluginError(plugin.ErrPluginTimeout, "plugin '%s' ran too long", "slow")
	assert.ErrorIs(t, err, plugin.ErrPluginExecution)
	assert.ErrorIs(t, err, plugin.ErrPluginTimeout)
	assert.Contains(t, err.Error(), "plugin 'slow' ran too long")

	err = plugin.Errorf("failed to start %q", "tool")
	assert.ErrorIs(t, err, plugin.ErrPluginExecution)
	assert.False(t, errors.Is(err, plugin.ErrPluginTimeout))
}

func TestPluginInput_JSONShape(t *testing.T) {
	in := plugin.PluginInput{
		SchemaVersion: plugin.PluginSchemaVersion,
		Mode:          plugin.ModeBuffer,
		Encoding:      plugin.EncodingNarrow,
		Codepage:      1252,
		Bytes:         []byte{0xE9},
	}
	raw, err := json.Marshal(in)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "1.0", fields["$schemaVersion"])
	assert.Equal(t, "6Q==", fields["bytes"], "narrow bytes travel as base64")
	assert.NotContains(t, fields, "sourcePath")
	assert.NotContains(t, fields, "content")
}

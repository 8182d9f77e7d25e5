// --- START OF FINAL REVISED FILE internal/testutil/mocks.go ---
// Package testutil provides mock implementations for interfaces defined in the
// textstore core library (pkg/textstore and subpackages) and small file helpers.
// These mocks facilitate unit testing by isolating components.
package testutil

import (
	"context"
	"log/slog"

	"github.com/stackvity/textstore/pkg/textstore"
	"github.com/stackvity/textstore/pkg/textstore/plugin"
	"github.com/stretchr/testify/mock"
)

// MockPluginRunner provides a mock implementation of the plugin.PluginRunner interface.
// Configure expectations using testify/mock methods (e.g., .On("Run", ...).Return(...)).
type MockPluginRunner struct {
	mock.Mock
}

// Run mocks the Run method.
func (m *MockPluginRunner) Run(ctx context.Context, pluginConfig plugin.PluginConfig, input plugin.PluginInput) (output plugin.PluginOutput, err error) {
	args := m.Called(ctx, pluginConfig, input)
	output, _ = args.Get(0).(plugin.PluginOutput)
	err = args.Error(1)
	return
}

// MockNamer provides a mock implementation of the tempfile.Namer interface.
// Tests usually have it return paths created with CreateDummyFile.
type MockNamer struct {
	mock.Mock
}

// NewTempFile mocks the NewTempFile method.
func (m *MockNamer) NewTempFile() (path string, err error) {
	args := m.Called()
	path, _ = args.Get(0).(string)
	err = args.Error(1)
	return
}

// MockCodec provides a mock implementation of the encoding.Codec interface.
type MockCodec struct {
	mock.Mock
}

// NarrowToWide mocks the NarrowToWide method.
func (m *MockCodec) NarrowToWide(src []byte) (out []uint16, err error) {
	args := m.Called(src)
	out, _ = args.Get(0).([]uint16)
	err = args.Error(1)
	return
}

// WideToNarrow mocks the WideToNarrow method.
func (m *MockCodec) WideToNarrow(src []uint16) (out []byte, err error) {
	args := m.Called(src)
	out, _ = args.Get(0).([]byte)
	err = args.Error(1)
	return
}

// MockHooks provides a mock implementation of the textstore.Hooks interface.
type MockHooks struct {
	mock.Mock
}

// OnTransition mocks the OnTransition method.
func (m *MockHooks) OnTransition(event textstore.TransitionEvent) error {
	args := m.Called(event)
	return args.Error(0)
}

// OnCommit mocks the OnCommit method.
func (m *MockHooks) OnCommit(event textstore.CommitEvent) error {
	args := m.Called(event)
	return args.Error(0)
}

// MockLoggerHandler provides a mock implementation for slog.Handler.
// Generally, using slog.NewTextHandler with a bytes.Buffer is preferred for testing log output.
type MockLoggerHandler struct {
	mock.Mock
}

// Enabled mocks the Enabled method.
func (m *MockLoggerHandler) Enabled(ctx context.Context, level slog.Level) bool {
	args := m.Called(ctx, level)
	enabled, _ := args.Get(0).(bool)
	return enabled
}

// Handle mocks the Handle method.
func (m *MockLoggerHandler) Handle(ctx context.Context, r slog.Record) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

// WithAttrs mocks the WithAttrs method.
func (m *MockLoggerHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	args := m.Called(attrs)
	retHandler, ok := args.Get(0).(slog.Handler)
	if !ok || retHandler == nil {
		return m
	}
	return retHandler
}

// WithGroup mocks the WithGroup method.
func (m *MockLoggerHandler) WithGroup(name string) slog.Handler {
	args := m.Called(name)
	retHandler, ok := args.Get(0).(slog.Handler)
	if !ok || retHandler == nil {
		return m
	}
	return retHandler
}

// --- END OF FINAL REVISED FILE internal/testutil/mocks.go ---

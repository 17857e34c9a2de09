package backup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubHandler is a minimal ComponentHandler for registry and orchestrator
// tests. Behavior is driven by the function fields; unset fields succeed
// with zero values.
type stubHandler struct {
	name         string
	createFunc   func(ctx context.Context, dir string) (*ComponentMeta, error)
	restoreFunc  func(ctx context.Context, dir string) (int64, error)
	verifyFunc   func(ctx context.Context, dir string) error
	checksumFunc func(ctx context.Context) (string, int64, error)
}

func (s *stubHandler) Name() string { return s.name }

func (s *stubHandler) CreateBackup(ctx context.Context, dir string) (*ComponentMeta, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, dir)
	}
	return &ComponentMeta{Name: s.name, Status: ComponentStatusCompleted}, nil
}

func (s *stubHandler) RestoreBackup(ctx context.Context, dir string) (int64, error) {
	if s.restoreFunc != nil {
		return s.restoreFunc(ctx, dir)
	}
	return 0, nil
}

func (s *stubHandler) VerifyBackup(ctx context.Context, dir string) error {
	if s.verifyFunc != nil {
		return s.verifyFunc(ctx, dir)
	}
	return nil
}

func (s *stubHandler) CurrentStateChecksum(ctx context.Context) (string, int64, error) {
	if s.checksumFunc != nil {
		return s.checksumFunc(ctx)
	}
	return "stub-checksum", 0, nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	registry := NewHandlerRegistry()

	require.NoError(t, registry.Register(&stubHandler{name: "vector_store"}))
	require.NoError(t, registry.Register(&stubHandler{name: "graph_store"}))

	handler, err := registry.Get("vector_store")
	require.NoError(t, err)
	assert.Equal(t, "vector_store", handler.Name())

	_, err = registry.Get("unknown")
	assert.True(t, IsErrorType(err, BackupErrorTypeNotFound))
}

func TestRegistryRejectsDuplicatesAndUnnamed(t *testing.T) {
	registry := NewHandlerRegistry()

	require.NoError(t, registry.Register(&stubHandler{name: "vector_store"}))

	err := registry.Register(&stubHandler{name: "vector_store"})
	assert.True(t, IsErrorType(err, BackupErrorTypeConflict))

	err = registry.Register(&stubHandler{name: ""})
	assert.True(t, IsErrorType(err, BackupErrorTypeConfiguration))
}

func TestRegistryPreservesRegistrationOrder(t *testing.T) {
	registry := NewHandlerRegistry()
	require.NoError(t, registry.Register(&stubHandler{name: "graph_store"}))
	require.NoError(t, registry.Register(&stubHandler{name: "vector_store"}))

	assert.Equal(t, []string{"graph_store", "vector_store"}, registry.Names())

	handlers := registry.Handlers()
	require.Len(t, handlers, 2)
	assert.Equal(t, "graph_store", handlers[0].Name())
}

func TestRegistrySelect(t *testing.T) {
	registry := NewHandlerRegistry()
	require.NoError(t, registry.Register(&stubHandler{name: "vector_store"}))
	require.NoError(t, registry.Register(&stubHandler{name: "graph_store"}))

	all, err := registry.Select(nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := registry.Select([]string{"graph_store"})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "graph_store", one[0].Name())

	_, err = registry.Select([]string{"vector_store", "unknown"})
	assert.True(t, IsErrorType(err, BackupErrorTypeConfiguration))
}

package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/ferry/internal/event"
)

func TestPlan_NoMutation(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	createTestTree(t, src)

	items, err := Plan(context.Background(), src, dst, defaultTestConfig())
	require.NoError(t, err)
	require.NotEmpty(t, items)

	// The destination was never created.
	_, statErr := os.Lstat(dst)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPlan_Decisions(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.MkdirAll(dst, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "new"), []byte("n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "existing"), []byte("e"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "existing"), []byte("old"), 0o644))

	items, err := Plan(context.Background(), src, dst, defaultTestConfig())
	require.NoError(t, err)

	actions := map[string]event.Action{}
	for _, item := range items {
		actions[filepath.Base(item.Src)] = item.Action
	}

	assert.Equal(t, event.ActionCopy, actions["new"])
	assert.Equal(t, event.ActionSkip, actions["existing"])
	// Root directory already exists: ensure-exists is a skip.
	assert.Equal(t, event.ActionSkip, actions["src"])
}

func TestPlan_MatchesExecution(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	createTestTree(t, src)

	planned, err := Plan(context.Background(), src, dst, defaultTestConfig())
	require.NoError(t, err)

	var plannedCopies int
	for _, item := range planned {
		if item.Kind != KindDir && item.Action == event.ActionCopy {
			plannedCopies++
		}
	}

	result := Run(context.Background(), src, dst, defaultTestConfig())
	require.NoError(t, result.Err)

	assert.Equal(t, int64(plannedCopies), result.Stats.FilesCopied+result.Stats.SymlinksCopied)
}

func TestPlan_EmitsEvents(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "f"), []byte("x"), 0o644))

	events := make(chan event.Event, 64)
	cfg := defaultTestConfig()
	cfg.Events = events

	_, err := Plan(context.Background(), src, dst, cfg)
	require.NoError(t, err)
	close(events)

	var types []event.Type
	for ev := range events {
		types = append(types, ev.Type)
	}
	require.NotEmpty(t, types)
	assert.Equal(t, event.EffectiveConfig, types[0])
	for _, typ := range types[1:] {
		assert.Equal(t, event.PlanItem, typ)
	}
}

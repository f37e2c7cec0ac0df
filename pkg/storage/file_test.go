package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ogulcanaydogan/LLM-Quota-Guardian/pkg/model"
	"github.com/ogulcanaydogan/LLM-Quota-Guardian/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() model.AlertState {
	t0 := time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC)
	t1 := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)
	checked := time.Date(2026, 3, 1, 14, 3, 12, 500, time.UTC)
	st := model.NewAlertState()
	st.FiveHourAlerted = []int{75, 90}
	st.WeeklyAlerted = []int{50}
	st.FiveHourResetAt = &t0
	st.WeeklyResetAt = &t1
	st.LastCheck = &checked
	return st
}

func TestFile_LoadMissing(t *testing.T) {
	store := storage.NewFile(filepath.Join(t.TempDir(), "state.json"))

	st, rev, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), rev)
	assert.Equal(t, model.NewAlertState(), st)
}

func TestFile_LoadUnreadable(t *testing.T) {
	store := storage.NewFile(t.TempDir())

	st, _, err := store.Load(context.Background())
	assert.ErrorIs(t, err, storage.ErrUnreadable)
	assert.NotErrorIs(t, err, storage.ErrCorruptState)
	assert.Equal(t, model.NewAlertState(), st)
}

func TestFile_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFile(filepath.Join(t.TempDir(), "nested", "state.json"))

	want := sampleState()
	_, err := store.Save(ctx, want, 0)
	require.NoError(t, err)

	got, _, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Unmodified resave must be idempotent.
	_, err = store.Save(ctx, got, 0)
	require.NoError(t, err)
	again, _, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))

	st, _, err := storage.NewFile(path).Load(context.Background())
	assert.ErrorIs(t, err, storage.ErrCorruptState)
	assert.Equal(t, model.NewAlertState(), st)
}

func TestFile_OrderInsensitiveSets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	body := `{"fiveHourAlerted":[95,75,75],"weeklyAlerted":null,"fiveHourResetAt":null,
		"weeklyResetAt":null,"lastCheck":null,"lastAuthError":null,"authErrorAlerted":true}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	st, _, err := storage.NewFile(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{75, 95}, st.FiveHourAlerted)
	assert.Equal(t, []int{}, st.WeeklyAlerted)
	assert.True(t, st.AuthErrorAlerted)
}

func TestFile_SaveNoTempLeftBehind(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewFile(filepath.Join(dir, "state.json"))
	_, err := store.Save(context.Background(), sampleState(), 0)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())
}

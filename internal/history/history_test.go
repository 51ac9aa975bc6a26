package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHistory(t *testing.T) (*History, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	h, err := New(path)
	if err != nil {
		t.Fatalf("Не удалось открыть историю: %v", err)
	}
	return h, path
}

func TestRecordAndRecent(t *testing.T) {
	h, _ := setupHistory(t)
	defer h.Close()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	h.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}

	require.NoError(t, h.Record(Entry{Source: "record", CacheKey: "k1", Height: 2, Width: 2}))
	require.NoError(t, h.Record(Entry{Source: "share_code", ErrorKind: "invalid_digit", Message: "bad"}))
	require.NoError(t, h.Record(Entry{Source: "record", CacheKey: "k3", Height: 1, Width: 1}))

	entries, err := h.Recent(2)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "k3", entries[0].CacheKey)
	assert.True(t, entries[0].OK())
	assert.Equal(t, base.Add(3*time.Second), entries[0].Time)

	assert.Equal(t, "invalid_digit", entries[1].ErrorKind)
	assert.False(t, entries[1].OK())
	assert.Equal(t, "share_code", entries[1].Source)

	all, err := h.Recent(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestReopenKeepsEntries(t *testing.T) {
	h, path := setupHistory(t)
	require.NoError(t, h.Record(Entry{Source: "record", CacheKey: "k"}))
	require.NoError(t, h.Close())

	h2, err := New(path)
	require.NoError(t, err)
	defer h2.Close()

	entries, err := h2.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "k", entries[0].CacheKey)
}

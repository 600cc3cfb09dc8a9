package audit

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	j, err := Open(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordRequest(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.RecordRequest(ctx, "delete", "INBOX", []string{"4", "9"}))

	entries, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "delete", e.Action)
	assert.Equal(t, "INBOX", e.Folder)
	assert.Equal(t, []string{"4", "9"}, e.UIDs)
	assert.Equal(t, 2, e.Requested)
	assert.WithinDuration(t, time.Now(), e.CreatedAt, time.Minute)
}

func TestRecent_NewestFirstAndLimited(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, action := range []string{"delete", "mark_read", "delete"} {
		_, err := j.Record(ctx, Entry{
			Action:    action,
			Folder:    "INBOX",
			UIDs:      []string{"1"},
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	entries, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].CreatedAt.After(entries[1].CreatedAt))
	assert.Equal(t, "delete", entries[0].Action)
	assert.Equal(t, "mark_read", entries[1].Action)
}

func TestRecord_KeepsGivenID(t *testing.T) {
	j := newTestJournal(t)

	e, err := j.Record(context.Background(), Entry{ID: "fixed", Action: "delete", Folder: "Trash", UIDs: []string{"1", "2", "3"}})
	require.NoError(t, err)
	assert.Equal(t, "fixed", e.ID)
	assert.Equal(t, 3, e.Requested)

	_, err = j.Record(context.Background(), Entry{ID: "fixed", Action: "delete", Folder: "Trash"})
	assert.Error(t, err)
}

func TestOpen_CreatesDirectory(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	path := filepath.Join(t.TempDir(), "nested", "audit.db")

	j, err := Open(path, logger)
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.RecordRequest(context.Background(), "mark_read", "INBOX", []string{"5"}))
	assert.FileExists(t, path)
}

func TestRecent_Empty(t *testing.T) {
	j := newTestJournal(t)

	entries, err := j.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

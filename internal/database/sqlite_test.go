package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leca/imgdrop/internal/model"
)

func newTestLedger(t *testing.T) *SQLiteLedger {
	t.Helper()
	l, err := NewSQLiteLedger(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func sampleAsset(id, ext, mime string, size int64) *model.Asset {
	return &model.Asset{
		ID:        id,
		Ext:       ext,
		MediaType: mime,
		Size:      size,
		Uploaded:  time.Now().UTC(),
	}
}

func TestRecordAndTotals(t *testing.T) {
	l := newTestLedger(t)

	require.NoError(t, l.RecordAsset(sampleAsset("abc12", "jpeg", "image/jpeg", 1000)))
	require.NoError(t, l.RecordAsset(sampleAsset("def34", "jpeg", "image/jpeg", 500)))
	require.NoError(t, l.RecordAsset(sampleAsset("ghi56", "png", "image/png", 200)))

	count, bytes, err := l.Totals()
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, int64(1700), bytes)
}

func TestStatsGroupsByType(t *testing.T) {
	l := newTestLedger(t)

	require.NoError(t, l.RecordAsset(sampleAsset("abc12", "jpeg", "image/jpeg", 1000)))
	require.NoError(t, l.RecordAsset(sampleAsset("def34", "jpeg", "image/jpeg", 500)))
	require.NoError(t, l.RecordAsset(sampleAsset("ghi56", "png", "image/png", 200)))

	stats, err := l.Stats()
	require.NoError(t, err)
	require.Len(t, stats, 2)

	byMime := map[string]model.TypeStat{}
	for _, st := range stats {
		byMime[st.MediaType] = st
	}
	assert.Equal(t, 2, byMime["image/jpeg"].Count)
	assert.Equal(t, int64(1500), byMime["image/jpeg"].Bytes)
	assert.Equal(t, 1, byMime["image/png"].Count)
}

func TestRemoveAsset(t *testing.T) {
	l := newTestLedger(t)

	require.NoError(t, l.RecordAsset(sampleAsset("abc12", "jpeg", "image/jpeg", 100)))
	require.NoError(t, l.RemoveAsset("abc12.jpeg"))

	count, _, err := l.Totals()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// Removing an absent row is not an error.
	assert.NoError(t, l.RemoveAsset("abc12.jpeg"))
}

func TestDuplicateRecordFails(t *testing.T) {
	l := newTestLedger(t)

	require.NoError(t, l.RecordAsset(sampleAsset("abc12", "jpeg", "image/jpeg", 100)))
	assert.Error(t, l.RecordAsset(sampleAsset("abc12", "jpeg", "image/jpeg", 100)))
}

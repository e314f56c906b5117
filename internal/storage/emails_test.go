package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipmatch/internal"
)

func TestEmailLifecycle(t *testing.T) {
	db := openTestDB(t)

	later, err := db.UpsertEmail("imap", "<b@wh>", "Ship confirm", "wh@example.com", "2026-01-03T10:00:00Z", "h2", "raw/b.eml", "fetched")
	require.NoError(t, err)
	first, err := db.UpsertEmail("imap", "<a@wh>", "Packing list", "wh@example.com", "2026-01-02T10:00:00Z", "h1", "raw/a.eml", "fetched")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, later.ID)
	assert.Equal(t, "fetched", first.Status)
	assert.Empty(t, first.ReportKind)

	pending, err := db.ListEmailsByStatus("fetched", 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "<a@wh>", pending[0].MessageID)

	require.NoError(t, db.RecordDetection(first.ID, "imported", internal.KindPacked, 0.65))
	got, err := db.MustEmailByID(first.ID)
	require.NoError(t, err)
	assert.Equal(t, "imported", got.Status)
	assert.Equal(t, internal.KindPacked, got.ReportKind)
	assert.InDelta(t, 0.65, got.DetectScore, 1e-9)

	// Re-upserting refreshes metadata but keeps the status.
	again, err := db.UpsertEmail("imap", "<a@wh>", "Packing list v2", "wh@example.com", "2026-01-02T10:00:00Z", "h3", "raw/a2.eml", "fetched")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "imported", again.Status)
	assert.Equal(t, "h3", again.Hash)
	assert.Equal(t, "Packing list v2", again.Subject)

	missing, err := db.GetEmailByProviderMessageID("gmail", "<a@wh>")
	require.NoError(t, err)
	assert.Nil(t, missing)
	_, err = db.MustEmailByID(9999)
	assert.Error(t, err)
}

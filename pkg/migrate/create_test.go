package migrate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateKeepsVersionsIncreasingWhenClockLags(t *testing.T) {
	dir := t.TempDir()
	existing := "20261010235959_add_refund_reasons.sql"
	require.NoError(t, os.WriteFile(filepath.Join(dir, existing), []byte("-- +goose Up\n-- +goose Down\nSELECT 1;\n"), 0o644))

	lagging := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	path, err := createAt(dir, "payout batches", lagging)
	require.NoError(t, err)
	assert.Equal(t, "20261011000000_payout_batches.sql", filepath.Base(path))

	path, err = createAt(dir, "payout batches", lagging)
	require.NoError(t, err)
	assert.Equal(t, "20261011000001_payout_batches.sql", filepath.Base(path))
}

func TestCreateUsesClockWhenAhead(t *testing.T) {
	dir := t.TempDir()
	path, err := createAt(dir, "  Seller Tiers ", time.Date(2026, 10, 16, 14, 5, 9, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "20261016140509_seller_tiers.sql", filepath.Base(path))

	_, err = createAt(dir, "!!!", time.Now())
	require.Error(t, err)
}

package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/streamflow-sync/internal/domain"
	"github.com/couchcryptid/streamflow-sync/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err, "read fixture %s", name)
	return data
}

func TestSyncer_WithFixtureData(t *testing.T) {
	listing, err := domain.ParseRivers(readFixture(t, "rivers.json"))
	require.NoError(t, err)

	txReport, err := domain.ParseWaterReport(readFixture(t, "report_tx.json"))
	require.NoError(t, err)
	coReport, err := domain.ParseWaterReport(readFixture(t, "report_co.json"))
	require.NoError(t, err)

	dir := &mockDirectory{listing: listing}
	rivers, err := pipeline.NewSelector(dir, discardLogger(), newTestMetrics()).Resolve(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, rivers, 3, "river without a site code is skipped")

	source := &mockSource{reports: map[string]domain.WaterReport{
		"08086000,08158000": txReport,
		"09085000":          coReport,
	}}
	loader := &mockLoader{}

	result, err := pipeline.New(source, loader, discardLogger(), newTestMetrics(), 2).Sync(context.Background(), rivers)
	require.NoError(t, err)

	h6 := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)
	h7 := time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)
	want := []domain.Row{
		{Timestamp: h6, Discharge: "512.30", RiverID: "9b1f4c2e-0001-4d7a-9a51-2f0e6b1c0001"},
		{Timestamp: h7, Discharge: "520.46", RiverID: "9b1f4c2e-0001-4d7a-9a51-2f0e6b1c0001"},
		{Timestamp: h7, Discharge: "1230.00", RiverID: "9b1f4c2e-0002-4d7a-9a51-2f0e6b1c0002"},
		{Timestamp: h7, Discharge: "301.00", RiverID: "9b1f4c2e-0003-4d7a-9a51-2f0e6b1c0003"},
	}
	require.Len(t, loader.batches, 1)
	if diff := cmp.Diff(want, loader.batches[0].Rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 4, result.RowsWritten)
	assert.Equal(t, 4, result.Stats.Series)
	assert.Equal(t, 8, result.Stats.Samples)
	assert.Equal(t, 2, result.Stats.OffHour)
	assert.Equal(t, 1, result.Stats.NoData)
	assert.Equal(t, 1, result.Stats.Malformed)
	assert.Equal(t, []string{"09999999"}, result.Stats.Unmapped)
}

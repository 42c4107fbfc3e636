package parquet

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/cfpscan/schema"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryStructTags(t *testing.T) {
	s := parquet.SchemaOf(new(Repository))
	require.NotNil(t, s)

	for _, colName := range []string{
		"repo", "code", "comments", "blanks", "total_eloc", "files_scanned",
		"movements", "cfp_total", "eloc_per_cfp", "cfp_per_kloc", "error",
	} {
		_, ok := s.Lookup(colName)
		assert.True(t, ok, "Column %s should exist in schema", colName)
	}
}

func TestAnalysisRunStructTags(t *testing.T) {
	s := parquet.SchemaOf(new(AnalysisRun))
	require.NotNil(t, s)

	for _, colName := range []string{
		"analysis_id", "start_time", "end_time", "run_duration_ms",
		"total_repositories", "total_failures", "config_params",
	} {
		_, ok := s.Lookup(colName)
		assert.True(t, ok, "Column %s should exist in schema", colName)
	}
}

func sampleRecords() []schema.RepositoryRecord {
	return []schema.RepositoryRecord{
		{
			Repo:           "acme_api",
			LineMetrics:    schema.LineMetrics{Code: 1000, Comments: 100, Blanks: 50, TotalELOC: 1150},
			Movements:      schema.MovementCounts{schema.EntryMovement: 12, schema.ExitMovement: 30, "custom": 2},
			FilesScanned:   8,
			DerivedMetrics: schema.DerivedMetrics{CFPTotal: 44, ELOCPerCFP: 26.14, CFPPerKLOC: 38.26},
		},
		{
			Repo:      "acme_cli",
			Movements: schema.MovementCounts{schema.EntryMovement: 0, schema.ExitMovement: 0, "custom": 0},
			Error:     "tokei failed",
		},
	}
}

func TestConvertRecords(t *testing.T) {
	categories := []schema.MovementCategory{schema.EntryMovement, schema.ExitMovement, "custom"}
	rows := ConvertRecords(sampleRecords(), categories)
	require.Len(t, rows, 2)

	assert.Equal(t, "acme_api", rows[0].Repo)
	assert.Equal(t, int64(1150), rows[0].TotalELOC)
	assert.Equal(t, []Movement{{"entry", 12}, {"exit", 30}, {"custom", 2}}, rows[0].Movements)
	assert.Nil(t, rows[0].Error)

	require.NotNil(t, rows[1].Error)
	assert.Equal(t, "tokei failed", *rows[1].Error)
	assert.Len(t, rows[1].Movements, 3)
}

func TestWriteRowsRoundTrip(t *testing.T) {
	categories := []schema.MovementCategory{schema.EntryMovement, schema.ExitMovement, "custom"}
	rows := ConvertRecords(sampleRecords(), categories)

	var buf bytes.Buffer
	require.NoError(t, WriteRows(&buf, rows))

	reader := parquet.NewGenericReader[Repository](bytes.NewReader(buf.Bytes()))
	defer func() { _ = reader.Close() }()

	readData := make([]Repository, reader.NumRows())
	n, err := reader.Read(readData)
	if err != nil && err != io.EOF {
		require.NoError(t, err)
	}
	require.Equal(t, 2, n)
	assert.Equal(t, rows[0].Repo, readData[0].Repo)
	assert.Equal(t, rows[0].Movements, readData[0].Movements)
	assert.InDelta(t, 38.26, readData[0].CFPPerKLOC, 1e-9)
	require.NotNil(t, readData[1].Error)
	assert.Equal(t, "tokei failed", *readData[1].Error)
}

func TestWriteAnalysisRunsParquet(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	duration := int32(90000)
	params := `{"workers":4}`
	runs := ConvertAnalysisRunRecords([]schema.AnalysisRunRecord{
		{AnalysisID: 1, StartTime: start, EndTime: &end, RunDurationMs: &duration, TotalRepositories: 3, TotalFailures: 1, ConfigParams: &params},
		{AnalysisID: 2, StartTime: start.Add(time.Hour)},
	})

	outputPath := filepath.Join(t.TempDir(), "runs.parquet")
	require.NoError(t, WriteAnalysisRunsParquet(runs, outputPath))

	file, err := os.Open(outputPath)
	require.NoError(t, err)
	defer func() { _ = file.Close() }()

	reader := parquet.NewGenericReader[AnalysisRun](file)
	defer func() { _ = reader.Close() }()

	readData := make([]AnalysisRun, reader.NumRows())
	n, err := reader.Read(readData)
	if err != nil && err != io.EOF {
		require.NoError(t, err)
	}
	require.Equal(t, 2, n)
	assert.Equal(t, int32(3), readData[0].TotalRepositories)
	assert.Equal(t, int32(1), readData[0].TotalFailures)
	require.NotNil(t, readData[0].EndTime)
	assert.True(t, end.Equal(*readData[0].EndTime))
	assert.Nil(t, readData[1].EndTime)
	assert.Nil(t, readData[1].ConfigParams)
}

func TestConvertRepositoryMetricsRecords(t *testing.T) {
	t.Run("expands movements", func(t *testing.T) {
		rows, err := ConvertRepositoryMetricsRecords([]schema.RepositoryMetricsRecord{
			{AnalysisID: 4, Repo: "acme_api", Movements: `{"zeta":1,"exit":3,"entry":2}`},
		})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, []Movement{{"entry", 2}, {"exit", 3}, {"zeta", 1}}, rows[0].Movements)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		_, err := ConvertRepositoryMetricsRecords([]schema.RepositoryMetricsRecord{
			{AnalysisID: 4, Repo: "acme_api", Movements: `{not json`},
		})
		assert.Error(t, err)
	})
}

func TestWriteRepositoryMetricsParquet_BadPath(t *testing.T) {
	err := WriteRepositoryMetricsParquet(nil, filepath.Join(t.TempDir(), "missing", "out.parquet"))
	assert.Error(t, err)
}

// Package parquet exports cfpscan results and tracked runs to Parquet files
// using github.com/parquet-go/parquet-go.
package parquet

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/huangsam/cfpscan/schema"
	"github.com/parquet-go/parquet-go"
)

// Movement is one category count inside a repeated movements group. A
// repeated group keeps the column layout stable across taxonomies.
type Movement struct {
	Category string `parquet:"category,snappy,dict"`
	Count    int64  `parquet:"count,snappy"`
}

// Repository is one row of an estimate written in Parquet format.
type Repository struct {
	Repo         string     `parquet:"repo,snappy"`
	Code         int64      `parquet:"code,snappy"`
	Comments     int64      `parquet:"comments,snappy"`
	Blanks       int64      `parquet:"blanks,snappy"`
	TotalELOC    int64      `parquet:"total_eloc,snappy"`
	FilesScanned int64      `parquet:"files_scanned,snappy"`
	Movements    []Movement `parquet:"movements"`
	CFPTotal     float64    `parquet:"cfp_total,snappy"`
	ELOCPerCFP   float64    `parquet:"eloc_per_cfp,snappy"`
	CFPPerKLOC   float64    `parquet:"cfp_per_kloc,snappy"`
	Error        *string    `parquet:"error,optional,snappy"`
}

// AnalysisRun maps to the cfpscan_analysis_runs table.
type AnalysisRun struct {
	AnalysisID        int64      `parquet:"analysis_id,snappy"`
	StartTime         time.Time  `parquet:"start_time,snappy"`
	EndTime           *time.Time `parquet:"end_time,optional,snappy"`
	RunDurationMs     *int32     `parquet:"run_duration_ms,optional,snappy"`
	TotalRepositories int32      `parquet:"total_repositories,snappy"`
	TotalFailures     int32      `parquet:"total_failures,snappy"`
	// ConfigParams contains the JSON-encoded configuration parameters
	ConfigParams *string `parquet:"config_params,optional,snappy"`
}

// RepositoryMetrics maps to the cfpscan_repository_metrics table.
type RepositoryMetrics struct {
	AnalysisID   int64      `parquet:"analysis_id,snappy"`
	Repo         string     `parquet:"repo,snappy"`
	AnalysisTime time.Time  `parquet:"analysis_time,snappy"`
	Code         int32      `parquet:"code,snappy"`
	Comments     int32      `parquet:"comments,snappy"`
	Blanks       int32      `parquet:"blanks,snappy"`
	TotalELOC    int32      `parquet:"total_eloc,snappy"`
	FilesScanned int32      `parquet:"files_scanned,snappy"`
	Movements    []Movement `parquet:"movements"`
	CFPTotal     float64    `parquet:"cfp_total,snappy"`
	ELOCPerCFP   float64    `parquet:"eloc_per_cfp,snappy"`
	CFPPerKLOC   float64    `parquet:"cfp_per_kloc,snappy"`
	Error        *string    `parquet:"error,optional,snappy"`
}

// WriteRows writes rows to w. The schema is inferred from T's struct tags.
func WriteRows[T any](w io.Writer, rows []T) error {
	writer := parquet.NewGenericWriter[T](w)
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// writeFile creates outputPath and writes rows to it.
func writeFile[T any](rows []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := WriteRows(file, rows); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// WriteAnalysisRunsParquet writes tracked runs to a Parquet file.
func WriteAnalysisRunsParquet(data []AnalysisRun, outputPath string) error {
	return writeFile(data, outputPath)
}

// WriteRepositoryMetricsParquet writes tracked repository rows to a Parquet file.
func WriteRepositoryMetricsParquet(data []RepositoryMetrics, outputPath string) error {
	return writeFile(data, outputPath)
}

// ConvertRecords converts estimate records into Parquet rows. Movements are
// listed in the order of categories.
func ConvertRecords(records []schema.RepositoryRecord, categories []schema.MovementCategory) []Repository {
	result := make([]Repository, len(records))
	for i, rec := range records {
		row := Repository{
			Repo:         rec.Repo,
			Code:         int64(rec.Code),
			Comments:     int64(rec.Comments),
			Blanks:       int64(rec.Blanks),
			TotalELOC:    int64(rec.TotalELOC),
			FilesScanned: int64(rec.FilesScanned),
			Movements:    toMovements(rec.Movements, categories),
			CFPTotal:     rec.CFPTotal,
			ELOCPerCFP:   rec.ELOCPerCFP,
			CFPPerKLOC:   rec.CFPPerKLOC,
		}
		if rec.Error != "" {
			msg := rec.Error
			row.Error = &msg
		}
		result[i] = row
	}
	return result
}

// ConvertAnalysisRunRecords converts stored runs for Parquet export.
func ConvertAnalysisRunRecords(records []schema.AnalysisRunRecord) []AnalysisRun {
	result := make([]AnalysisRun, len(records))
	for i, record := range records {
		result[i] = AnalysisRun{
			AnalysisID:        record.AnalysisID,
			StartTime:         record.StartTime,
			EndTime:           record.EndTime,
			RunDurationMs:     record.RunDurationMs,
			TotalRepositories: record.TotalRepositories,
			TotalFailures:     record.TotalFailures,
			ConfigParams:      record.ConfigParams,
		}
	}
	return result
}

// ConvertRepositoryMetricsRecords converts stored repository rows for
// Parquet export, expanding the JSON movements column.
func ConvertRepositoryMetricsRecords(records []schema.RepositoryMetricsRecord) ([]RepositoryMetrics, error) {
	result := make([]RepositoryMetrics, len(records))
	for i, record := range records {
		var counts schema.MovementCounts
		if err := json.Unmarshal([]byte(record.Movements), &counts); err != nil {
			return nil, fmt.Errorf("invalid movements for %s in run %d: %w", record.Repo, record.AnalysisID, err)
		}
		result[i] = RepositoryMetrics{
			AnalysisID:   record.AnalysisID,
			Repo:         record.Repo,
			AnalysisTime: record.AnalysisTime,
			Code:         record.Code,
			Comments:     record.Comments,
			Blanks:       record.Blanks,
			TotalELOC:    record.TotalELOC,
			FilesScanned: record.FilesScanned,
			Movements:    toMovements(counts, sortedCategories(counts)),
			CFPTotal:     record.CFPTotal,
			ELOCPerCFP:   record.ELOCPerCFP,
			CFPPerKLOC:   record.CFPPerKLOC,
			Error:        record.Error,
		}
	}
	return result, nil
}

func toMovements(counts schema.MovementCounts, categories []schema.MovementCategory) []Movement {
	out := make([]Movement, 0, len(categories))
	for _, c := range categories {
		out = append(out, Movement{Category: string(c), Count: int64(counts[c])})
	}
	return out
}

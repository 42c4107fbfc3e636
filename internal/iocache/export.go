package iocache

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/huangsam/cfpscan/internal/contract"
	"github.com/huangsam/cfpscan/internal/parquet"
)

// ExecuteAnalysisExport exports the global analysis store to Parquet files.
func ExecuteAnalysisExport(outputFile string) error {
	return ExportAnalysis(os.Stdout, Manager.GetAnalysisStore(), outputFile)
}

// ExportAnalysis writes every tracked run and repository row to
// <outputFile>.analysis_runs.parquet and <outputFile>.repository_metrics.parquet.
func ExportAnalysis(w io.Writer, store contract.AnalysisStore, outputFile string) error {
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}
	if store == nil {
		return errors.New("analysis tracking is not configured. Set --analysis-backend")
	}

	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get analysis status: %w", err)
	}
	if status.TotalRuns == 0 {
		return errors.New("no analysis data found to export")
	}

	_, _ = fmt.Fprintf(w, "Exporting data from %s backend...\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Total analysis runs: %s\n", humanize.Comma(int64(status.TotalRuns)))
	_, _ = fmt.Fprintf(w, "Total repository records: %s\n", humanize.Comma(status.TableSizes[repositoryMetricsTable]))

	analysisRuns, err := store.GetAllAnalysisRuns()
	if err != nil {
		return fmt.Errorf("failed to retrieve analysis runs: %w", err)
	}
	repoMetrics, err := store.GetAllRepositoryMetrics()
	if err != nil {
		return fmt.Errorf("failed to retrieve repository metrics: %w", err)
	}

	parquetRuns := parquet.ConvertAnalysisRunRecords(analysisRuns)
	parquetMetrics, err := parquet.ConvertRepositoryMetricsRecords(repoMetrics)
	if err != nil {
		return err
	}

	analysisRunsFile := outputFile + ".analysis_runs.parquet"
	if err := parquet.WriteAnalysisRunsParquet(parquetRuns, analysisRunsFile); err != nil {
		return fmt.Errorf("failed to write analysis runs: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d analysis runs to: %s\n", len(parquetRuns), analysisRunsFile)

	metricsFile := outputFile + ".repository_metrics.parquet"
	if err := parquet.WriteRepositoryMetricsParquet(parquetMetrics, metricsFile); err != nil {
		return fmt.Errorf("failed to write repository metrics: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d repository records to: %s\n", len(parquetMetrics), metricsFile)
	return nil
}

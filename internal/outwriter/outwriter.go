// Package outwriter renders estimates, run summaries and the movement taxonomy.
package outwriter

import (
	"cmp"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/huangsam/cfpscan/internal/contract"
	"github.com/huangsam/cfpscan/internal/parquet"
	"github.com/huangsam/cfpscan/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// WriteBatchResult outputs the records of a batch, dispatching based on the
// configured output format.
func WriteBatchResult(result *schema.BatchResult, cfg *contract.Config, outputFile string, duration time.Duration) error {
	fmtFloat, fmtTotal := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(outputFile, func(w io.Writer) error {
			return writeRecordsJSON(w, result, cfg)
		}, "Wrote JSON")
	case schema.ParquetOut:
		return writeWithFile(outputFile, func(w io.Writer) error {
			return parquet.WriteRows(w, parquet.ConvertRecords(result.Records, result.Categories))
		}, "Wrote Parquet")
	case schema.TextOut:
		return writeWithFile(outputFile, func(w io.Writer) error {
			return writeRecordsTable(w, result, cfg, fmtFloat, fmtTotal, duration)
		}, "Wrote table")
	default:
		return writeWithFile(outputFile, func(w io.Writer) error {
			return writeRecordsCSV(w, result, fmtFloat, fmtTotal)
		}, "Wrote CSV")
	}
}

// recordsHeader returns the tabular column set: identifier, line metrics,
// one column per category and the derived metrics.
func recordsHeader(categories []schema.MovementCategory) []string {
	header := []string{"repo", "code", "comments", "blanks", "total_eloc"}
	for _, c := range categories {
		header = append(header, string(c))
	}
	return append(header, "cfp_total", "eloc_per_cfp", "cfp_per_kloc")
}

// writeRecordsCSV writes one row per record.
func writeRecordsCSV(w io.Writer, result *schema.BatchResult, fmtFloat, fmtTotal func(float64) string) error {
	return writeCSVWithHeader(w, recordsHeader(result.Categories), func(cw *csv.Writer) error {
		for _, r := range result.Records {
			row := []string{
				r.Repo,
				strconv.Itoa(r.Code),
				strconv.Itoa(r.Comments),
				strconv.Itoa(r.Blanks),
				strconv.Itoa(r.TotalELOC),
			}
			for _, c := range result.Categories {
				row = append(row, strconv.Itoa(r.Movements[c]))
			}
			row = append(row, fmtTotal(r.CFPTotal), fmtFloat(r.ELOCPerCFP), fmtFloat(r.CFPPerKLOC))
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// jsonRecord adds the density label to a record.
type jsonRecord struct {
	schema.RepositoryRecord
	Density string `json:"density"`
}

// writeRecordsJSON writes the batch as one JSON document.
func writeRecordsJSON(w io.Writer, result *schema.BatchResult, cfg *contract.Config) error {
	records := make([]jsonRecord, len(result.Records))
	for i, r := range result.Records {
		records[i] = jsonRecord{RepositoryRecord: r, Density: contract.GetPlainLabel(r.CFPPerKLOC)}
	}
	skipped := result.Skipped
	if skipped == nil {
		skipped = []string{}
	}
	failures := result.Failures
	if failures == nil {
		failures = []schema.Failure{}
	}
	return writeJSON(w, struct {
		Categories []schema.MovementCategory `json:"categories"`
		Precision  int                       `json:"precision"`
		Records    []jsonRecord              `json:"records"`
		Skipped    []string                  `json:"skipped"`
		Failures   []schema.Failure          `json:"failures"`
	}{result.Categories, cfg.Precision, records, skipped, failures})
}

// RankRecords orders records by cfp_total descending, breaking ties by name,
// and applies the limit.
func RankRecords(records []schema.RepositoryRecord, limit int) []schema.RepositoryRecord {
	ranked := slices.Clone(records)
	slices.SortStableFunc(ranked, func(a, b schema.RepositoryRecord) int {
		if c := cmp.Compare(b.CFPTotal, a.CFPTotal); c != 0 {
			return c
		}
		return cmp.Compare(a.Repo, b.Repo)
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// writeRecordsTable generates and writes the human-readable table.
func writeRecordsTable(w io.Writer, result *schema.BatchResult, cfg *contract.Config, fmtFloat, fmtTotal func(float64) string, duration time.Duration) error {
	table := tablewriter.NewWriter(w)

	headers := []string{"Rank", "Repo", "Code", "ELOC"}
	for _, c := range result.Categories {
		headers = append(headers, string(c))
	}
	headers = append(headers, "CFP", "ELOC/CFP", "CFP/KLOC", "Density")
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	ranked := RankRecords(result.Records, cfg.ResultLimit)
	repoWidth := getMaxTableRepoWidth(cfg, len(result.Categories))
	data := make([][]string, 0, len(ranked))
	for i, r := range ranked {
		row := []string{
			strconv.Itoa(i + 1),
			contract.TruncatePath(r.Repo, repoWidth),
			humanize.Comma(int64(r.Code)),
			humanize.Comma(int64(r.TotalELOC)),
		}
		for _, c := range result.Categories {
			row = append(row, humanize.Comma(int64(r.Movements[c])))
		}
		row = append(row,
			fmtTotal(r.CFPTotal),
			fmtFloat(r.ELOCPerCFP),
			fmtFloat(r.CFPPerKLOC),
			contract.GetColorLabel(r.CFPPerKLOC),
		)
		data = append(data, row)
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	var totalCFP float64
	for _, r := range result.Records {
		totalCFP += r.CFPTotal
	}
	if _, err := fmt.Fprintf(w, "Showing top %d of %d repositories (total CFP: %s)\n", len(ranked), len(result.Records), fmtTotal(totalCFP)); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Estimation completed in %v with %d workers. Cache backend: %s\n", duration.Round(time.Millisecond), result.Workers, cfg.CacheBackend)
	return err
}

// PrintBatchSummary prints the one-line run summary to stderr.
func PrintBatchSummary(result *schema.BatchResult, cfg *contract.Config) error {
	return writeBatchSummary(os.Stderr, result, cfg)
}

func writeBatchSummary(w io.Writer, result *schema.BatchResult, cfg *contract.Config) error {
	_, err := fmt.Fprintf(w, "✅ Estimated %s repositories (skipped %d, failed %d, canceled %d, cache hits %d) with %d workers in %v. Cache backend: %s\n",
		humanize.Comma(int64(len(result.Records))),
		len(result.Skipped), len(result.Failures), result.Canceled, result.CacheHits,
		result.Workers, result.Duration.Round(time.Millisecond), cfg.CacheBackend)
	return err
}

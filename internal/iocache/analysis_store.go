package iocache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/huangsam/cfpscan/internal/contract"
	"github.com/huangsam/cfpscan/schema"
)

// Table names for run tracking.
const (
	analysisRunsTable      = "cfpscan_analysis_runs"
	repositoryMetricsTable = "cfpscan_repository_metrics"
)

// AnalysisStoreImpl records estimation runs and their repository rows.
type AnalysisStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.AnalysisStore = &AnalysisStoreImpl{} // Compile-time check

// NewAnalysisStore opens the backend and makes sure both tables exist.
// The none backend yields a store that accepts and discards everything.
func NewAnalysisStore(backend schema.DatabaseBackend, connStr string) (contract.AnalysisStore, error) {
	if backend == schema.NoneBackend {
		return &AnalysisStoreImpl{backend: backend}, nil
	}

	db, err := openDatabase(backend, connStr, contract.GetAnalysisDBFilePath())
	if err != nil {
		return nil, err
	}

	if err := createAnalysisTables(db, backend); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create analysis tables: %w", err)
	}

	return &AnalysisStoreImpl{db: db, backend: backend}, nil
}

// createAnalysisTables creates the run tracking tables.
func createAnalysisTables(db *sql.DB, backend schema.DatabaseBackend) error {
	tables := []struct {
		name  string
		query string
	}{
		{analysisRunsTable, getCreateAnalysisRunsQuery(backend)},
		{repositoryMetricsTable, getCreateRepositoryMetricsQuery(backend)},
	}

	for _, table := range tables {
		if _, err := db.Exec(table.query); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table.name, err)
		}
	}
	return nil
}

// getCreateAnalysisRunsQuery returns the CREATE TABLE query for cfpscan_analysis_runs.
func getCreateAnalysisRunsQuery(backend schema.DatabaseBackend) string {
	quoted := quoteTableName(analysisRunsTable, backend)

	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				analysis_id BIGINT AUTO_INCREMENT PRIMARY KEY,
				start_time DATETIME(6) NOT NULL,
				end_time DATETIME(6),
				run_duration_ms INT,
				total_repositories INT NOT NULL DEFAULT 0,
				total_failures INT NOT NULL DEFAULT 0,
				config_params TEXT
			);
		`, quoted)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				analysis_id BIGSERIAL PRIMARY KEY,
				start_time TIMESTAMPTZ NOT NULL,
				end_time TIMESTAMPTZ,
				run_duration_ms INT,
				total_repositories INT NOT NULL DEFAULT 0,
				total_failures INT NOT NULL DEFAULT 0,
				config_params TEXT
			);
		`, quoted)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				analysis_id INTEGER PRIMARY KEY AUTOINCREMENT,
				start_time TEXT NOT NULL,
				end_time TEXT,
				run_duration_ms INTEGER,
				total_repositories INTEGER NOT NULL DEFAULT 0,
				total_failures INTEGER NOT NULL DEFAULT 0,
				config_params TEXT
			);
		`, quoted)
	}
}

// getCreateRepositoryMetricsQuery returns the CREATE TABLE query for cfpscan_repository_metrics.
func getCreateRepositoryMetricsQuery(backend schema.DatabaseBackend) string {
	quoted := quoteTableName(repositoryMetricsTable, backend)

	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				analysis_id BIGINT NOT NULL,
				repo VARCHAR(255) NOT NULL,
				analysis_time DATETIME(6) NOT NULL,
				code INT NOT NULL,
				comments INT NOT NULL,
				blanks INT NOT NULL,
				total_eloc INT NOT NULL,
				files_scanned INT NOT NULL,
				movements TEXT NOT NULL,
				cfp_total DOUBLE NOT NULL,
				eloc_per_cfp DOUBLE NOT NULL,
				cfp_per_kloc DOUBLE NOT NULL,
				error TEXT,
				PRIMARY KEY (analysis_id, repo)
			);
		`, quoted)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				analysis_id BIGINT NOT NULL,
				repo TEXT NOT NULL,
				analysis_time TIMESTAMPTZ NOT NULL,
				code INT NOT NULL,
				comments INT NOT NULL,
				blanks INT NOT NULL,
				total_eloc INT NOT NULL,
				files_scanned INT NOT NULL,
				movements TEXT NOT NULL,
				cfp_total DOUBLE PRECISION NOT NULL,
				eloc_per_cfp DOUBLE PRECISION NOT NULL,
				cfp_per_kloc DOUBLE PRECISION NOT NULL,
				error TEXT,
				PRIMARY KEY (analysis_id, repo)
			);
		`, quoted)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				analysis_id INTEGER NOT NULL,
				repo TEXT NOT NULL,
				analysis_time TEXT NOT NULL,
				code INTEGER NOT NULL,
				comments INTEGER NOT NULL,
				blanks INTEGER NOT NULL,
				total_eloc INTEGER NOT NULL,
				files_scanned INTEGER NOT NULL,
				movements TEXT NOT NULL,
				cfp_total REAL NOT NULL,
				eloc_per_cfp REAL NOT NULL,
				cfp_per_kloc REAL NOT NULL,
				error TEXT,
				PRIMARY KEY (analysis_id, repo)
			);
		`, quoted)
	}
}

// BeginAnalysis creates a new run and returns its unique ID.
func (as *AnalysisStoreImpl) BeginAnalysis(startTime time.Time, configParams map[string]any) (int64, error) {
	if as.db == nil {
		return 0, nil
	}

	configJSON, err := json.Marshal(configParams)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal config params: %w", err)
	}

	quoted := quoteTableName(analysisRunsTable, as.backend)
	var analysisID int64
	switch as.backend {
	case schema.PostgreSQLBackend:
		query := fmt.Sprintf(`INSERT INTO %s (start_time, config_params) VALUES ($1, $2) RETURNING analysis_id`, quoted)
		err = as.db.QueryRow(query, startTime, string(configJSON)).Scan(&analysisID)
	default: // SQLite and MySQL
		query := fmt.Sprintf(`INSERT INTO %s (start_time, config_params) VALUES (?, ?)`, quoted)
		var result sql.Result
		result, err = as.db.Exec(query, formatTime(startTime, as.backend), string(configJSON))
		if err == nil {
			analysisID, err = result.LastInsertId()
		}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert analysis run: %w", err)
	}
	return analysisID, nil
}

// EndAnalysis stamps the run with its end time, duration and totals.
func (as *AnalysisStoreImpl) EndAnalysis(analysisID int64, endTime time.Time, totalRepositories int, totalFailures int) error {
	if as.db == nil {
		return nil
	}

	quoted := quoteTableName(analysisRunsTable, as.backend)
	query := fmt.Sprintf(`SELECT start_time FROM %s WHERE analysis_id = %s`, quoted, placeholder(as.backend, 1))
	startTime, err := as.scanTime(as.db.QueryRow(query, analysisID))
	if err != nil {
		return fmt.Errorf("failed to get start_time for analysis %d: %w", analysisID, err)
	}

	durationMs := endTime.Sub(startTime).Milliseconds()
	update := fmt.Sprintf(`UPDATE %s SET end_time = %s, run_duration_ms = %s, total_repositories = %s, total_failures = %s WHERE analysis_id = %s`,
		quoted,
		placeholder(as.backend, 1), placeholder(as.backend, 2), placeholder(as.backend, 3),
		placeholder(as.backend, 4), placeholder(as.backend, 5))
	if _, err := as.db.Exec(update, formatTime(endTime, as.backend), durationMs, totalRepositories, totalFailures, analysisID); err != nil {
		return fmt.Errorf("failed to update analysis run: %w", err)
	}
	return nil
}

// RecordRepository stores the finalized record of one repository. Movement
// counts are kept as a JSON object so runs with different taxonomies share
// one table.
func (as *AnalysisStoreImpl) RecordRepository(analysisID int64, record schema.RepositoryRecord) error {
	if as.db == nil {
		return nil
	}

	movements, err := json.Marshal(record.Movements)
	if err != nil {
		return fmt.Errorf("failed to marshal movements for %s: %w", record.Repo, err)
	}
	var recErr *string
	if record.Error != "" {
		recErr = &record.Error
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (analysis_id, repo, analysis_time, code, comments, blanks, total_eloc,
		                files_scanned, movements, cfp_total, eloc_per_cfp, cfp_per_kloc, error)
		VALUES (%s)
	`, quoteTableName(repositoryMetricsTable, as.backend), placeholders(as.backend, 13))
	args := []any{
		analysisID, record.Repo, formatTime(time.Now(), as.backend),
		record.Code, record.Comments, record.Blanks, record.TotalELOC,
		record.FilesScanned, string(movements),
		record.CFPTotal, record.ELOCPerCFP, record.CFPPerKLOC, recErr,
	}
	if _, err := as.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to insert repository metrics: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (as *AnalysisStoreImpl) Close() error {
	if as.db != nil {
		return as.db.Close()
	}
	return nil
}

// GetStatus returns status information about the analysis store.
func (as *AnalysisStoreImpl) GetStatus() (schema.AnalysisStatus, error) {
	status := schema.AnalysisStatus{
		Backend:    string(as.backend),
		Connected:  as.db != nil,
		TableSizes: make(map[string]int64),
	}
	if as.db == nil {
		return status, nil
	}

	runs := quoteTableName(analysisRunsTable, as.backend)
	if err := as.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", runs)).Scan(&status.TotalRuns); err != nil {
		return status, fmt.Errorf("failed to get total runs: %w", err)
	}

	if status.TotalRuns > 0 {
		lastRunQuery := fmt.Sprintf("SELECT analysis_id, start_time FROM %s ORDER BY analysis_id DESC LIMIT 1", runs)
		var lastStart any
		if err := as.db.QueryRow(lastRunQuery).Scan(&status.LastRunID, &lastStart); err != nil {
			return status, fmt.Errorf("failed to get last run info: %w", err)
		}
		lastRunTime, err := as.parseTime(lastStart)
		if err != nil {
			return status, fmt.Errorf("failed to parse last run time: %w", err)
		}
		status.LastRunTime = lastRunTime

		oldestRunQuery := fmt.Sprintf("SELECT start_time FROM %s ORDER BY analysis_id ASC LIMIT 1", runs)
		oldest, err := as.scanTime(as.db.QueryRow(oldestRunQuery))
		if err != nil {
			return status, fmt.Errorf("failed to get oldest run time: %w", err)
		}
		status.OldestRunTime = oldest

		totalQuery := fmt.Sprintf("SELECT COALESCE(SUM(total_repositories), 0) FROM %s", runs)
		if err := as.db.QueryRow(totalQuery).Scan(&status.TotalRepositoriesScanned); err != nil {
			return status, fmt.Errorf("failed to get total repositories scanned: %w", err)
		}
	}

	for _, table := range []string{analysisRunsTable, repositoryMetricsTable} {
		var count int64
		countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteTableName(table, as.backend))
		if err := as.db.QueryRow(countQuery).Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}
	return status, nil
}

// GetAllAnalysisRuns retrieves all runs ordered by ID.
func (as *AnalysisStoreImpl) GetAllAnalysisRuns() ([]schema.AnalysisRunRecord, error) {
	if as.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT analysis_id, start_time, end_time, run_duration_ms, total_repositories, total_failures, config_params
		FROM %s ORDER BY analysis_id`, quoteTableName(analysisRunsTable, as.backend))
	rows, err := as.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.AnalysisRunRecord
	for rows.Next() {
		var record schema.AnalysisRunRecord
		var start, end any
		if err := rows.Scan(&record.AnalysisID, &start, &end, &record.RunDurationMs,
			&record.TotalRepositories, &record.TotalFailures, &record.ConfigParams); err != nil {
			return nil, fmt.Errorf("failed to scan analysis run: %w", err)
		}
		if record.StartTime, err = as.parseTime(start); err != nil {
			return nil, fmt.Errorf("failed to parse start_time: %w", err)
		}
		if end != nil {
			endTime, err := as.parseTime(end)
			if err != nil {
				return nil, fmt.Errorf("failed to parse end_time: %w", err)
			}
			record.EndTime = &endTime
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analysis runs: %w", err)
	}
	return results, nil
}

// GetAllRepositoryMetrics retrieves all repository rows ordered by run and repo.
func (as *AnalysisStoreImpl) GetAllRepositoryMetrics() ([]schema.RepositoryMetricsRecord, error) {
	if as.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT analysis_id, repo, analysis_time, code, comments, blanks, total_eloc,
		files_scanned, movements, cfp_total, eloc_per_cfp, cfp_per_kloc, error
		FROM %s ORDER BY analysis_id, repo`, quoteTableName(repositoryMetricsTable, as.backend))
	rows, err := as.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query repository metrics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.RepositoryMetricsRecord
	for rows.Next() {
		var record schema.RepositoryMetricsRecord
		var analysisTime any
		if err := rows.Scan(&record.AnalysisID, &record.Repo, &analysisTime,
			&record.Code, &record.Comments, &record.Blanks, &record.TotalELOC,
			&record.FilesScanned, &record.Movements,
			&record.CFPTotal, &record.ELOCPerCFP, &record.CFPPerKLOC, &record.Error); err != nil {
			return nil, fmt.Errorf("failed to scan repository metrics: %w", err)
		}
		if record.AnalysisTime, err = as.parseTime(analysisTime); err != nil {
			return nil, fmt.Errorf("failed to parse analysis_time: %w", err)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating repository metrics: %w", err)
	}
	return results, nil
}

// scanTime reads a single time column from row.
func (as *AnalysisStoreImpl) scanTime(row *sql.Row) (time.Time, error) {
	var raw any
	if err := row.Scan(&raw); err != nil {
		return time.Time{}, err
	}
	return as.parseTime(raw)
}

// parseTime normalizes a time column. SQLite keeps RFC3339 text while MySQL
// and PostgreSQL hand back native values.
func (as *AnalysisStoreImpl) parseTime(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		return time.Parse(time.RFC3339Nano, v)
	case []byte:
		if as.backend == schema.MySQLBackend {
			return time.Parse("2006-01-02 15:04:05.999999", string(v))
		}
		return time.Parse(time.RFC3339Nano, string(v))
	default:
		return time.Time{}, fmt.Errorf("unexpected time value %T", raw)
	}
}

// formatTime converts a time.Time to the appropriate format for the backend.
func formatTime(t time.Time, backend schema.DatabaseBackend) any {
	if backend == schema.SQLiteBackend {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return t
}

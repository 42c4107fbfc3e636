package schema

import "time"

// AnalysisRunRecord represents a row from the cfpscan_analysis_runs table.
type AnalysisRunRecord struct {
	AnalysisID        int64
	StartTime         time.Time
	EndTime           *time.Time
	RunDurationMs     *int32
	TotalRepositories int32
	TotalFailures     int32
	ConfigParams      *string
}

// RepositoryMetricsRecord represents a row from the cfpscan_repository_metrics table.
// Movements holds the JSON-encoded MovementCounts of the run's taxonomy.
type RepositoryMetricsRecord struct {
	AnalysisID   int64
	Repo         string
	AnalysisTime time.Time
	Code         int32
	Comments     int32
	Blanks       int32
	TotalELOC    int32
	FilesScanned int32
	Movements    string
	CFPTotal     float64
	ELOCPerCFP   float64
	CFPPerKLOC   float64
	Error        *string
}

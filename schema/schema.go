// Package schema has models and constants shared by all parts of cfpscan.
package schema

import "time"

// LineMetrics holds the line counts measured upstream for one repository.
// TotalELOC is code + comments + blanks as reported by the line counter.
type LineMetrics struct {
	Code      int `json:"code"`
	Comments  int `json:"comments"`
	Blanks    int `json:"blanks"`
	TotalELOC int `json:"total_eloc"`
}

// MovementCounts maps each category to its raw occurrence count.
type MovementCounts map[MovementCategory]int

// Clone returns a copy that shares no state with the receiver.
func (mc MovementCounts) Clone() MovementCounts {
	out := make(MovementCounts, len(mc))
	for k, v := range mc {
		out[k] = v
	}
	return out
}

// Add accumulates other into the receiver.
func (mc MovementCounts) Add(other MovementCounts) {
	for k, v := range other {
		mc[k] += v
	}
}

// DerivedMetrics holds the aggregate and normalized metrics for a repository.
type DerivedMetrics struct {
	CFPTotal   float64 `json:"cfp_total"`
	ELOCPerCFP float64 `json:"eloc_per_cfp"`
	CFPPerKLOC float64 `json:"cfp_per_kloc"`
}

// RepositoryInput is one unit of work for the aggregator: a repository
// identifier, its local path and optional prior line metrics.
type RepositoryInput struct {
	Repo        string
	Path        string
	LineMetrics LineMetrics
	HasMetrics  bool
	UpstreamErr string // error column reported by the line counter, if any
	CloneURL    string
	Stars       int
}

// ScanResult is what the scanner produces for one repository. It is owned by
// a single task and folded into a RepositoryRecord.
type ScanResult struct {
	Counts          MovementCounts `json:"counts"`
	FilesScanned    int            `json:"files_scanned"`
	FilesUnreadable int            `json:"files_unreadable"`
	Error           string         `json:"error,omitempty"`
}

// RepositoryRecord is the finalized output unit for one repository.
type RepositoryRecord struct {
	Repo string `json:"repo"`
	LineMetrics
	Movements    MovementCounts `json:"movements"`
	FilesScanned int            `json:"files_scanned"`
	DerivedMetrics
	Error string `json:"error,omitempty"`
}

// Failure describes a repository task that did not produce a record.
type Failure struct {
	Repo  string `json:"repo"`
	Path  string `json:"path"`
	Error string `json:"error"`
}

// BatchResult is the outcome of one estimation run across a corpus.
type BatchResult struct {
	Categories []MovementCategory `json:"categories"`
	Records    []RepositoryRecord `json:"records"`
	Skipped    []string           `json:"skipped"`
	Failures   []Failure          `json:"failures"`
	Canceled   int                `json:"canceled"`
	CacheHits  int                `json:"cache_hits"`
	Workers    int                `json:"workers"`
	Duration   time.Duration      `json:"duration"`
}

package schema

// Custom string types for type safety.
type (
	// MovementCategory represents a COSMIC data movement bucket.
	MovementCategory string

	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for caching and run tracking.
	DatabaseBackend string

	// DensityBand represents a coarse label for CFP density.
	DensityBand string
)

// Movement categories known to the built-in taxonomy.
const (
	EntryMovement     MovementCategory = "entry"
	ExitMovement      MovementCategory = "exit"
	ReadMovement      MovementCategory = "read"
	WriteMovement     MovementCategory = "write"
	ChannelMovement   MovementCategory = "channel"
	GoroutineMovement MovementCategory = "goroutine"
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv" // default
	TextOut    OutputMode = "text"
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All database backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite"
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none" // default
)

// Density bands derived from cfp_per_kloc.
const (
	DenseBand    DensityBand = "Dense"
	HighBand     DensityBand = "High"
	ModerateBand DensityBand = "Moderate"
	SparseBand   DensityBand = "Sparse"
)

// BuiltinCategories is the canonical category order. Custom categories
// sort after these.
var BuiltinCategories = []MovementCategory{
	EntryMovement,
	ExitMovement,
	ReadMovement,
	WriteMovement,
	ChannelMovement,
	GoroutineMovement,
}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidDatabaseBackends lists all valid database backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// GetDensityBand maps a cfp_per_kloc value to its band.
func GetDensityBand(cfpPerKLOC float64) DensityBand {
	switch {
	case cfpPerKLOC >= 150:
		return DenseBand
	case cfpPerKLOC >= 100:
		return HighBand
	case cfpPerKLOC >= 50:
		return ModerateBand
	default:
		return SparseBand
	}
}

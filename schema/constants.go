package schema

// Custom string types for type safety.
type (
	// OutputMode represents the format of the output.
	OutputMode string

	// ParamLocation represents where a request parameter is carried.
	ParamLocation string

	// DatabaseBackend represents the database backend for run history.
	DatabaseBackend string

	// RatingLabel represents the coarse grade derived from a rating.
	RatingLabel string
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	YAMLOut    OutputMode = "yaml"
	ParquetOut OutputMode = "parquet"
)

// All parameter locations supported.
const (
	QueryParam  ParamLocation = "query"
	PathParam   ParamLocation = "path"
	BodyParam   ParamLocation = "body"
	HeaderParam ParamLocation = "header"
)

// All run history backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// Rating labels, from best to worst.
const (
	PassLabel    RatingLabel = "Pass"
	PartialLabel RatingLabel = "Partial"
	FailLabel    RatingLabel = "Fail"
)

// ValidOutputModes lists all valid output modes for reports.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:  {},
	TextOut: {},
	JSONOut: {},
	YAMLOut: {},
}

// ValidParamLocations lists all valid parameter locations.
var ValidParamLocations = map[ParamLocation]struct{}{
	QueryParam:  {},
	PathParam:   {},
	BodyParam:   {},
	HeaderParam: {},
}

// ValidDatabaseBackends lists all valid run history backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

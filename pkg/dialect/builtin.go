package dialect

// Common set-returning functions shared by most dialects.
var ansiTableFuncs = []string{
	"UNNEST",
	"GENERATE_SERIES",
}

func init() {
	Register(New("ansi", NormCaseInsensitive, ansiTableFuncs...))

	Register(New("duckdb", NormCaseInsensitive, append(ansiTableFuncs,
		"READ_CSV", "READ_CSV_AUTO", "READ_PARQUET", "READ_JSON", "READ_JSON_AUTO",
		"RANGE", "GLOB", "UNPIVOT",
	)...))

	Register(New("postgres", NormLowercase, append(ansiTableFuncs,
		"GENERATE_SUBSCRIPTS", "JSON_ARRAY_ELEMENTS", "JSONB_ARRAY_ELEMENTS",
		"JSON_EACH", "JSONB_EACH", "REGEXP_SPLIT_TO_TABLE", "STRING_TO_TABLE",
	)...))

	Register(New("redshift", NormLowercase, ansiTableFuncs...))

	Register(New("bigquery", NormCaseInsensitive, append(ansiTableFuncs,
		"GENERATE_ARRAY", "GENERATE_DATE_ARRAY", "GENERATE_TIMESTAMP_ARRAY",
	)...))

	Register(New("databricks", NormCaseInsensitive, append(ansiTableFuncs,
		"EXPLODE", "EXPLODE_OUTER", "POSEXPLODE", "INLINE", "STACK",
	)...))

	// Snowflake folds unquoted identifiers to uppercase; lineage lookups
	// must use the folded form while internal names keep their case.
	Register(New("snowflake", NormUppercase, append(ansiTableFuncs,
		"FLATTEN", "LATERAL_FLATTEN", "SPLIT_TO_TABLE", "STRTOK_SPLIT_TO_TABLE",
	)...))
}

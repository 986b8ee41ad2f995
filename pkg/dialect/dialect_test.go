package dialect_test

import (
	"testing"

	"github.com/leapstack-labs/columnci/pkg/dialect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"snowflake", false},
		{"Snowflake", false},
		{"SNOWFLAKE", false},
		{"duckdb", false},
		{"postgres", false},
		{"redshift", false},
		{"bigquery", false},
		{"databricks", false},
		{"ansi", false},
		{"mysql", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := dialect.Get(tt.name)
			if tt.wantErr {
				require.ErrorIs(t, err, dialect.ErrUnknownDialect)
				assert.Nil(t, d)
			} else {
				require.NoError(t, err)
				require.NotNil(t, d)
			}
		})
	}
}

func TestNormalizeName(t *testing.T) {
	snowflake, err := dialect.Get("snowflake")
	require.NoError(t, err)
	postgres, err := dialect.Get("postgres")
	require.NoError(t, err)
	duckdb, err := dialect.Get("duckdb")
	require.NoError(t, err)

	assert.Equal(t, "REVENUE", snowflake.NormalizeName("revenue"))
	assert.Equal(t, "REVENUE", snowflake.NormalizeName("Revenue"))
	assert.Equal(t, "revenue", postgres.NormalizeName("Revenue"))
	assert.Equal(t, "Revenue", duckdb.NormalizeName("Revenue"))
}

func TestLookupKeyMatchesNormalization(t *testing.T) {
	snowflake, err := dialect.Get("snowflake")
	require.NoError(t, err)
	assert.Equal(t, "ORDER_TOTAL", snowflake.LookupKey("order_total"))
}

func TestIsTableFunction(t *testing.T) {
	tests := []struct {
		dialect string
		fn      string
		want    bool
	}{
		{"snowflake", "flatten", true},
		{"snowflake", "FLATTEN", true},
		{"snowflake", "split_to_table", true},
		{"snowflake", "sum", false},
		{"databricks", "explode", true},
		{"bigquery", "generate_array", true},
		{"postgres", "jsonb_array_elements", true},
		{"ansi", "unnest", true},
		{"ansi", "generate_series", true},
		{"ansi", "explode", false},
	}

	for _, tt := range tests {
		t.Run(tt.dialect+"/"+tt.fn, func(t *testing.T) {
			d, err := dialect.Get(tt.dialect)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.IsTableFunction(tt.fn))
		})
	}
}

func TestList(t *testing.T) {
	names := dialect.List()
	assert.Contains(t, names, "snowflake")
	assert.Contains(t, names, "duckdb")
	assert.IsType(t, []string{}, names)
	// sorted
	for i := 1; i < len(names); i++ {
		assert.LessOrEqual(t, names[i-1], names[i])
	}
}

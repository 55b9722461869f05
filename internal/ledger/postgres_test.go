package ledger

import (
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresSourceRequiresDSN(t *testing.T) {
	_, err := NewPostgresSource(PostgresConfig{})
	require.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestPostgresConfigDefaults(t *testing.T) {
	c := DefaultPostgresConfig()
	assert.False(t, c.Enabled)
	assert.Equal(t, "ledger_rows", c.Table)
	assert.Equal(t, 30, c.QueryTimeoutSeconds)
}

func TestPgRowMapping(t *testing.T) {
	p := pgRow{
		EntityName:        "PropCo",
		PropertyName:      "Building 120",
		TenantName:        sql.NullString{String: "Tenant 8", Valid: true},
		LedgerType:        "revenue",
		LedgerGroup:       "rental_income",
		LedgerCategory:    "rent",
		LedgerCode:        "4000",
		LedgerDescription: "Base rent",
		Month:             "2024-M01",
		Quarter:           "2024-Q1",
		Year:              "2024",
		Profit:            decimal.NewFromInt(120000),
	}

	r := p.toRow()
	assert.Equal(t, "Building 120", r.PropertyName)
	assert.Equal(t, "Tenant 8", r.TenantName)
	assert.Equal(t, TypeRevenue, r.LedgerType)
	assert.True(t, r.Profit.Equal(decimal.NewFromInt(120000)))

	// A database null tenant maps to the empty string, matching the CSV
	// null convention.
	p.TenantName = sql.NullString{}
	assert.Equal(t, "", p.toRow().TenantName)
}

package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(property, tenant string, typ Type, group, year, quarter string, profit int64) Row {
	return Row{
		EntityName:   "PropCo",
		PropertyName: property,
		TenantName:   tenant,
		LedgerType:   typ,
		LedgerGroup:  group,
		Year:         year,
		Quarter:      quarter,
		Month:        year + "-M01",
		Profit:       decimal.NewFromInt(profit),
	}
}

func testRows() []Row {
	return []Row{
		row("Building 120", "Tenant 8", TypeRevenue, "rental_income", "2024", "2024-Q1", 120000),
		row("Building 120", "Tenant 3", TypeRevenue, "rental_income", "2024", "2024-Q2", 110000),
		row("Building 120", "", TypeExpenses, "maintenance", "2024", "2024-Q1", -30000),
		row("Building 17", "Tenant 8", TypeRevenue, "rental_income", "2023", "2023-Q4", 40000),
		row("Building 17", "", TypeExpenses, "utilities", "2023", "2023-Q4", -90000),
	}
}

func TestDatasetDistinctValues(t *testing.T) {
	ds := NewDataset(testRows())

	assert.Equal(t, []string{"Building 120", "Building 17"}, ds.Properties())
	assert.Equal(t, []string{"Tenant 3", "Tenant 8"}, ds.Tenants(), "empty tenant cells are excluded")
	assert.Equal(t, []string{"2023", "2024"}, ds.Years())
	assert.Equal(t, []string{"2023-Q4", "2024-Q1", "2024-Q2"}, ds.Quarters())
}

func TestDatasetSelectPredicates(t *testing.T) {
	ds := NewDataset(testRows())

	assert.Len(t, ds.Select(Filter{}), 5, "empty filter matches all rows")
	assert.Len(t, ds.Select(Filter{Property: "Building 120"}), 3)
	assert.Len(t, ds.Select(Filter{Type: TypeExpenses}), 2)
	assert.Len(t, ds.Select(Filter{Property: "Building 17", Type: TypeRevenue}), 1)
	assert.Empty(t, ds.Select(Filter{Property: "Building 999"}))
}

func TestPeriodQuarterOverridesYear(t *testing.T) {
	ds := NewDataset(testRows())

	// Quarter fully determines the year: year is not applied on top, even
	// when it disagrees with the quarter.
	rows := ds.Select(Filter{Period: Period{Year: "2023", Quarter: "2024-Q1"}})
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, "2024-Q1", r.Quarter)
	}

	assert.Len(t, ds.Select(Filter{Period: Period{Year: "2024"}}), 3)
}

func TestPeriodLabel(t *testing.T) {
	assert.Equal(t, "all periods", Period{}.Label())
	assert.Equal(t, "2024", Period{Year: "2024"}.Label())
	assert.Equal(t, "2024-Q1", Period{Year: "2024", Quarter: "2024-Q1"}.Label())
}

package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// PostgresConfig holds connection settings for the Postgres ledger source.
// Disabled by default; the CSV source is the usual path.
type PostgresConfig struct {
	Enabled             bool   `yaml:"enabled"`
	DSN                 string `yaml:"dsn"`
	Table               string `yaml:"table"`
	MaxOpenConns        int    `yaml:"max_open_conns"`
	QueryTimeoutSeconds int    `yaml:"query_timeout_seconds"`
}

// DefaultPostgresConfig returns reasonable defaults.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		Table:               "ledger_rows",
		MaxOpenConns:        5,
		QueryTimeoutSeconds: 30,
	}
}

// QueryTimeout returns the load query timeout.
func (c PostgresConfig) QueryTimeout() time.Duration {
	if c.QueryTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

// PostgresSource loads the ledger from a Postgres table carrying the same
// twelve columns as the CSV layout.
type PostgresSource struct {
	config PostgresConfig
	db     *sqlx.DB
}

// NewPostgresSource opens the database connection. The connection is verified
// lazily at Load time, not here.
func NewPostgresSource(config PostgresConfig) (*PostgresSource, error) {
	if config.DSN == "" {
		return nil, fmt.Errorf("%w: postgres DSN is required", ErrSourceUnavailable)
	}
	if config.Table == "" {
		config.Table = "ledger_rows"
	}
	db, err := sqlx.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	return &PostgresSource{config: config, db: db}, nil
}

// pgRow mirrors Row with database null handling for tenant_name.
type pgRow struct {
	EntityName        string          `db:"entity_name"`
	PropertyName      string          `db:"property_name"`
	TenantName        sql.NullString  `db:"tenant_name"`
	LedgerType        string          `db:"ledger_type"`
	LedgerGroup       string          `db:"ledger_group"`
	LedgerCategory    string          `db:"ledger_category"`
	LedgerCode        string          `db:"ledger_code"`
	LedgerDescription string          `db:"ledger_description"`
	Month             string          `db:"month"`
	Quarter           string          `db:"quarter"`
	Year              string          `db:"year"`
	Profit            decimal.Decimal `db:"profit"`
}

func (p pgRow) toRow() Row {
	return Row{
		EntityName:        p.EntityName,
		PropertyName:      p.PropertyName,
		TenantName:        p.TenantName.String,
		LedgerType:        Type(p.LedgerType),
		LedgerGroup:       p.LedgerGroup,
		LedgerCategory:    p.LedgerCategory,
		LedgerCode:        p.LedgerCode,
		LedgerDescription: p.LedgerDescription,
		Month:             p.Month,
		Quarter:           p.Quarter,
		Year:              p.Year,
		Profit:            p.Profit,
	}
}

// Load selects the whole table into an immutable dataset. A connection or
// scan failure yields ErrSourceUnavailable / ErrSchema; nothing is retained
// from a failed load.
func (s *PostgresSource) Load(ctx context.Context) (*Dataset, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout())
	defer cancel()

	query := fmt.Sprintf(`SELECT entity_name, property_name, tenant_name, ledger_type,
		ledger_group, ledger_category, ledger_code, ledger_description,
		month, quarter, year, profit FROM %s`, s.config.Table)

	var raw []pgRow
	if err := s.db.SelectContext(ctx, &raw, query); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	rows := make([]Row, 0, len(raw))
	for _, p := range raw {
		rows = append(rows, p.toRow())
	}

	log.Info().Str("table", s.config.Table).Int("rows", len(rows)).Msg("ledger table loaded")
	return NewDataset(rows), nil
}

// Close releases the underlying connection pool.
func (s *PostgresSource) Close() error {
	return s.db.Close()
}

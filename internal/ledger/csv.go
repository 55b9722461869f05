package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Load-time failures. Both are fatal to the process at startup: a dataset is
// either fully loaded or not loaded at all.
var (
	ErrSourceUnavailable = errors.New("ledger source unavailable")
	ErrSchema            = errors.New("ledger schema invalid")
)

// requiredColumns is the exact column set a ledger file must carry.
var requiredColumns = []string{
	"entity_name",
	"property_name",
	"tenant_name",
	"ledger_type",
	"ledger_group",
	"ledger_category",
	"ledger_code",
	"ledger_description",
	"month",
	"quarter",
	"year",
	"profit",
}

// Source produces a fully validated dataset or fails closed.
type Source interface {
	Load(ctx context.Context) (*Dataset, error)
}

// CSVSource loads the ledger from a headered CSV file. An empty tenant_name
// cell is treated as null.
type CSVSource struct {
	Path string
}

// NewCSVSource returns a source backed by the file at path.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{Path: path}
}

// Load reads and validates the whole file. A missing file yields
// ErrSourceUnavailable, a missing column or unparseable cell yields ErrSchema,
// and no partially valid file is ever partially loaded.
func (s *CSVSource) Load(_ context.Context) (*Dataset, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, s.Path)
		}
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read header: %v", ErrSchema, err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, name := range requiredColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("%w: missing required column %q", ErrSchema, name)
		}
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrSchema, line, err)
		}
		profit, err := decimal.NewFromString(rec[col["profit"]])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: bad profit %q", ErrSchema, line, rec[col["profit"]])
		}
		rows = append(rows, Row{
			EntityName:        rec[col["entity_name"]],
			PropertyName:      rec[col["property_name"]],
			TenantName:        rec[col["tenant_name"]],
			LedgerType:        Type(rec[col["ledger_type"]]),
			LedgerGroup:       rec[col["ledger_group"]],
			LedgerCategory:    rec[col["ledger_category"]],
			LedgerCode:        rec[col["ledger_code"]],
			LedgerDescription: rec[col["ledger_description"]],
			Month:             rec[col["month"]],
			Quarter:           rec[col["quarter"]],
			Year:              rec[col["year"]],
			Profit:            profit,
		})
	}

	log.Info().Str("path", s.Path).Int("rows", len(rows)).Msg("ledger CSV loaded")
	return NewDataset(rows), nil
}

package ledger

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrNotLoaded is returned by Current before the first successful Load.
var ErrNotLoaded = errors.New("ledger dataset not loaded")

// Store holds the process-wide dataset reference. The dataset itself is
// immutable; Reload builds a complete replacement and swaps the pointer, so
// in-flight readers see either the old or the new dataset in full, never a
// mix.
type Store struct {
	source  Source
	current atomic.Pointer[Dataset]
	loaded  atomic.Int64 // unix seconds of last successful load
}

// NewStore wraps a source. Call Load before serving queries.
func NewStore(source Source) *Store {
	return &Store{source: source}
}

// Load performs the initial load. Failure here is fatal to the caller: no
// query can proceed without a dataset.
func (s *Store) Load(ctx context.Context) error {
	return s.Reload(ctx)
}

// Reload loads a fresh dataset and atomically replaces the shared reference.
// On failure the previous dataset, if any, stays in place.
func (s *Store) Reload(ctx context.Context) error {
	ds, err := s.source.Load(ctx)
	if err != nil {
		log.Error().Err(err).Msg("ledger reload failed, keeping previous dataset")
		return err
	}
	s.current.Store(ds)
	s.loaded.Store(time.Now().Unix())
	log.Info().Int("rows", ds.Len()).
		Int("properties", len(ds.Properties())).
		Int("tenants", len(ds.Tenants())).
		Msg("ledger dataset swapped in")
	return nil
}

// Current returns the live dataset.
func (s *Store) Current() (*Dataset, error) {
	ds := s.current.Load()
	if ds == nil {
		return nil, ErrNotLoaded
	}
	return ds, nil
}

// LoadedAt returns the time of the last successful load, zero if none.
func (s *Store) LoadedAt() time.Time {
	sec := s.loaded.Load()
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

package stripe

import (
	"fmt"

	"github.com/cockroachdb/pebble"
)

// idempotencyStore remembers which charge References have already been
// sent to the processor, keyed by the charge Reference (the caller's
// idempotency key), so a handler retry after a transport timeout does
// not double-charge the processor (SPEC_FULL.md §11).
type idempotencyStore struct {
	db *pebble.DB
}

func openIdempotencyStore(path string) (*idempotencyStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("stripe: failed to open idempotency store: %w", err)
	}
	return &idempotencyStore{db: db}, nil
}

func (s *idempotencyStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Seen reports whether reference has already been recorded.
func (s *idempotencyStore) Seen(reference string) bool {
	if s == nil || s.db == nil {
		return false
	}
	_, closer, err := s.db.Get([]byte(reference))
	if err != nil {
		return false
	}
	_ = closer.Close()
	return true
}

// Record marks reference as sent.
func (s *idempotencyStore) Record(reference string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Set([]byte(reference), []byte{1}, pebble.Sync)
}

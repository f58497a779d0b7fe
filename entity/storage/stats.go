package storage

import (
	"context"

	"github.com/spuro/spuro/errors"
)

// Stats summarizes store occupancy for status surfaces.
type Stats struct {
	// Live counts entities currently visible to readers.
	Live int64 `json:"live"`
	// ExpiredPendingSweep counts rows past their TTL that the sweeper has
	// not reclaimed yet. Readers never see these.
	ExpiredPendingSweep int64 `json:"expired_pending_sweep"`
	// Tombstones counts keys retired forever, by delete or by expiry.
	Tombstones int64 `json:"tombstones"`
}

// Stats reports current store occupancy.
func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	now := s.now().UnixNano()

	var st Stats
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM entities WHERE expires_at > ?", now,
	).Scan(&st.Live); err != nil {
		return Stats{}, errors.WrapUnavailable(err, "count live entities")
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM entities WHERE expires_at <= ?", now,
	).Scan(&st.ExpiredPendingSweep); err != nil {
		return Stats{}, errors.WrapUnavailable(err, "count expired entities")
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM deleted_keys",
	).Scan(&st.Tombstones); err != nil {
		return Stats{}, errors.WrapUnavailable(err, "count tombstones")
	}
	return st, nil
}

package storage

import (
	"context"
	"time"

	"github.com/spuro/spuro/db"
	"github.com/spuro/spuro/entity"
	"github.com/spuro/spuro/errors"
	"github.com/spuro/spuro/logger"
)

// sweepBatch bounds the rows reclaimed per sweep pass so a large expiry
// backlog cannot hold the write path for long stretches.
const sweepBatch = 512

const expiredKeysQuery = `
	SELECT key, owner FROM entities WHERE expires_at <= ? LIMIT ?`

// SweepExpired reclaims entities past their TTL: each expired row moves to
// the tombstone table and an expired event is emitted for its key. Read
// paths already treat expired rows as absent, so the sweep changes no
// observable entity state; it reclaims storage. Returns the number of
// entities reclaimed.
func (s *SQLStore) SweepExpired(ctx context.Context) (int, error) {
	total := 0
	for {
		cutoff := s.now()

		type expired struct {
			key   entity.Key
			owner entity.Owner
		}
		var batch []expired

		rows, err := s.db.QueryContext(ctx, expiredKeysQuery, cutoff.UnixNano(), sweepBatch)
		if err != nil {
			return total, errors.WrapUnavailable(err, "scan expired entities")
		}
		for rows.Next() {
			var key, owner string
			if err := rows.Scan(&key, &owner); err != nil {
				rows.Close()
				return total, errors.WrapUnavailable(err, "scan expired entity row")
			}
			batch = append(batch, expired{entity.Key(key), entity.Owner(owner)})
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return total, errors.WrapUnavailable(err, "scan expired entities")
		}
		rows.Close()

		if len(batch) == 0 {
			return total, nil
		}

		for _, e := range batch {
			if err := ctx.Err(); err != nil {
				return total, errors.Wrap(err, "sweep abandoned")
			}
			reclaimed, err := s.reclaim(ctx, e.key, e.owner, cutoff)
			if err != nil {
				return total, err
			}
			if reclaimed {
				total++
			}
		}

		if len(batch) < sweepBatch {
			return total, nil
		}
	}
}

// reclaim removes one expired entity under its key lock. The delete is
// conditional on the expiry still holding, so a concurrent TTL extension
// between the scan and the lock wins and the row survives.
func (s *SQLStore) reclaim(ctx context.Context, key entity.Key, owner entity.Owner, cutoff time.Time) (bool, error) {
	unlock := s.locks.lock(key)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.WrapUnavailable(err, "begin sweep transaction")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"DELETE FROM entities WHERE key = ? AND expires_at <= ?",
		key, cutoff.UnixNano(),
	)
	if err != nil {
		return false, errors.WrapUnavailable(err, "delete expired entity")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.WrapUnavailable(err, "count swept rows")
	}
	if n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, tombstoneInsertQuery, key, cutoff.UTC().Format(time.RFC3339Nano)); err != nil {
		return false, errors.WrapUnavailable(err, "record expired key")
	}
	if err := tx.Commit(); err != nil {
		return false, errors.WrapUnavailable(err, "commit sweep")
	}

	s.publish(entity.EventExpired, key, owner, "", cutoff)
	return true, nil
}

// DefaultSweepInterval is how often the background sweeper runs unless
// configured otherwise.
const DefaultSweepInterval = 30 * time.Second

// Sweeper periodically reclaims expired entities in the background.
type Sweeper struct {
	store    *SQLStore
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}

	// OnSweep, when set before Start, observes the reclaim count of each
	// completed pass. Used to feed metrics.
	OnSweep func(reclaimed int)
}

// NewSweeper creates a sweeper over the store. A non-positive interval
// falls back to DefaultSweepInterval.
func NewSweeper(store *SQLStore, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		store:    store,
		interval: interval,
	}
}

// Start launches the background sweep loop. One pass runs immediately so a
// restart reclaims any backlog without waiting a full interval.
func (sw *Sweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	sw.cancel = cancel
	sw.done = make(chan struct{})

	go sw.run(ctx)
}

func (sw *Sweeper) run(ctx context.Context) {
	defer close(sw.done)

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	sw.sweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sw.sweepOnce(ctx)
		}
	}
}

func (sw *Sweeper) sweepOnce(ctx context.Context) {
	n, err := sw.store.SweepExpired(ctx)
	if err != nil {
		// A closed database just means shutdown won the race against the
		// ticker; not worth an error-level entry.
		if ctx.Err() == nil && !db.IsDatabaseClosed(err) {
			sw.store.logger.Errorw("expiry sweep failed", logger.FieldError, err)
		}
		return
	}
	if n > 0 {
		sw.store.logger.Infow("expiry sweep reclaimed entities", "reclaimed", n)
	}
	if sw.OnSweep != nil {
		sw.OnSweep(n)
	}
}

// Stop halts the sweep loop and waits for the in-flight pass to finish.
func (sw *Sweeper) Stop() {
	if sw.cancel == nil {
		return
	}
	sw.cancel()
	<-sw.done
	sw.cancel = nil
}

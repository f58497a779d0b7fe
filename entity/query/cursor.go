package query

import (
	"context"

	"github.com/spuro/spuro/entity"
	"github.com/spuro/spuro/errors"
)

// Candidate is one entity in storage order, tagged with its storage row so
// the cursor can resume fetching where the previous page ended.
type Candidate struct {
	Row    int64
	Entity *entity.Entity
}

// Source supplies visible (non-expired) entities in creation order, one
// page at a time. FetchPage returns up to limit candidates with Row >
// afterRow; an empty result means the scan is exhausted.
type Source interface {
	FetchPage(ctx context.Context, afterRow int64, limit int) ([]Candidate, error)
}

// DefaultPageSize is the underlying fetch granularity when the caller does
// not specify one.
const DefaultPageSize = 256

// Options configures one query run.
type Options struct {
	// Limit caps the number of returned entities. Zero or negative is
	// invalid: an unbounded scan must be requested explicitly by the
	// surrounding layer with its own cap.
	Limit int
	// Sort orders the matched set; nil means storage (creation) order.
	Sort []SortKey
	// PageSize overrides the underlying fetch granularity (testing knob).
	PageSize int
}

// Run evaluates pred against the source and returns at most opts.Limit
// matching entities, ordered by opts.Sort with entity-key tiebreak.
//
// The scan is lazy over storage: it fetches pages in creation order,
// filters, and stops as soon as Limit matches have been gathered, so I/O
// is proportional to results examined, not to total store size. The
// gathered candidate set is then sorted. The scan honors ctx cancellation
// between pages, making long runs abandonable without side effects.
//
// A nil pred matches every entity.
func Run(ctx context.Context, src Source, pred Node, opts Options) ([]*entity.Entity, error) {
	if opts.Limit <= 0 {
		return nil, errors.NewInvalidInputf("query limit must be positive, got %d", opts.Limit)
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var matched []*entity.Entity
	afterRow := int64(0)

	for len(matched) < opts.Limit {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "query abandoned")
		}

		page, err := src.FetchPage(ctx, afterRow, pageSize)
		if err != nil {
			return nil, errors.Wrap(err, "query page fetch")
		}
		if len(page) == 0 {
			break
		}

		for _, c := range page {
			if pred == nil || pred.Match(c.Entity.Attributes) {
				matched = append(matched, c.Entity)
				if len(matched) == opts.Limit {
					break
				}
			}
		}
		afterRow = page[len(page)-1].Row
	}

	if len(opts.Sort) > 0 {
		Sort(matched, opts.Sort)
	}
	return matched, nil
}

// Cursor yields matched entities one at a time. It is restartable only
// from the start: there is no way to rewind, matching the pipeline's
// lazy, forward-only contract. The candidate set materializes on the
// first Next call; nothing is fetched before that, and abandoning the
// cursor retains no unread pages.
type Cursor struct {
	src     Source
	pred    Node
	opts    Options
	results []*entity.Entity
	pos     int
	started bool
}

// NewCursor prepares a lazy result sequence. No I/O happens until Next.
func NewCursor(src Source, pred Node, opts Options) *Cursor {
	return &Cursor{src: src, pred: pred, opts: opts}
}

// Next returns the next entity, or (nil, nil) when the sequence is
// exhausted.
func (c *Cursor) Next(ctx context.Context) (*entity.Entity, error) {
	if !c.started {
		results, err := Run(ctx, c.src, c.pred, c.opts)
		if err != nil {
			return nil, err
		}
		c.results = results
		c.started = true
	}
	if c.pos >= len(c.results) {
		return nil, nil
	}
	e := c.results[c.pos]
	c.pos++
	return e, nil
}

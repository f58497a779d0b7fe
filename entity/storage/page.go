package storage

import (
	"context"

	"github.com/spuro/spuro/entity"
	"github.com/spuro/spuro/entity/query"
	"github.com/spuro/spuro/errors"
	"github.com/spuro/spuro/logger"
)

// FetchPage returns up to limit live entities in creation order, starting
// after afterRow. It implements query.Source for the pagination pipeline;
// expired rows are filtered out in SQL so the pipeline only ever sees
// visible entities.
func (s *SQLStore) FetchPage(ctx context.Context, afterRow int64, limit int) ([]query.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, entityPageQuery, afterRow, s.now().UnixNano(), limit)
	if err != nil {
		return nil, errors.WrapUnavailable(err, "scan entity page")
	}
	defer rows.Close()

	var page []query.Candidate
	for rows.Next() {
		e, rowID, err := scanEntity(rows)
		if err != nil {
			return nil, errors.WrapUnavailable(err, "scan entity page row")
		}
		page = append(page, query.Candidate{Row: rowID, Entity: e})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapUnavailable(err, "scan entity page")
	}
	return page, nil
}

// Search runs a filter expression over the live table and returns at most
// limit matches, ordered by sortSpec ("attr:kind:dir,..."; empty means
// creation order). An empty filter matches every entity; a malformed one is
// an input error, never an empty result.
func (s *SQLStore) Search(ctx context.Context, filter, sortSpec string, limit int) ([]*entity.Entity, error) {
	var pred query.Node
	if filter != "" {
		var err error
		pred, err = query.Parse(filter)
		if err != nil {
			return nil, err
		}
	}
	sortKeys, err := query.ParseSortKeys(sortSpec)
	if err != nil {
		return nil, err
	}

	matched, err := query.Run(ctx, s, pred, query.Options{Limit: limit, Sort: sortKeys})
	if err != nil {
		return nil, err
	}

	s.logger.Debugw("entity search",
		logger.FieldQuery, filter,
		logger.FieldLimit, limit,
		logger.FieldMatched, len(matched),
	)
	return matched, nil
}

// OpenCursor prepares a lazy one-at-a-time result sequence over the same
// pipeline Search uses. No I/O happens until the first Next call.
func (s *SQLStore) OpenCursor(filter, sortSpec string, limit int) (*query.Cursor, error) {
	var pred query.Node
	if filter != "" {
		var err error
		pred, err = query.Parse(filter)
		if err != nil {
			return nil, err
		}
	}
	sortKeys, err := query.ParseSortKeys(sortSpec)
	if err != nil {
		return nil, err
	}
	return query.NewCursor(s, pred, query.Options{Limit: limit, Sort: sortKeys}), nil
}

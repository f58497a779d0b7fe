// Package storage implements the entity repository over SQLite. It owns
// persistence, per-key write serialization, TTL visibility, and lifecycle
// event emission.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spuro/spuro/entity"
	"github.com/spuro/spuro/errors"
	"github.com/spuro/spuro/logger"
)

// Publisher receives committed lifecycle events. Publish assigns the event
// sequence number and must enqueue without blocking on subscriber delivery;
// mutation calls return as soon as the storage change is durable.
type Publisher interface {
	Publish(ev entity.Event)
}

// DefaultContentType is assumed when a create supplies none.
const DefaultContentType = "application/octet-stream"

// Query constants
const (
	entityInsertQuery = `
		INSERT INTO entities (key, owner, payload, content_type, attributes, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	entityGetQuery = `
		SELECT row_id, key, owner, payload, content_type, attributes, created_at, expires_at
		FROM entities WHERE key = ? AND expires_at > ?`

	entityExistsQuery = `
		SELECT EXISTS(SELECT 1 FROM entities WHERE key = ? AND expires_at > ?)`

	keyTakenQuery = `
		SELECT EXISTS(SELECT 1 FROM entities WHERE key = ? UNION SELECT 1 FROM deleted_keys WHERE key = ?)`

	entityOwnerQuery = `
		SELECT owner, expires_at FROM entities WHERE key = ?`

	entityDeleteQuery = `DELETE FROM entities WHERE key = ?`

	tombstoneInsertQuery = `
		INSERT OR IGNORE INTO deleted_keys (key, removed_at) VALUES (?, ?)`

	entityPageQuery = `
		SELECT row_id, key, owner, payload, content_type, attributes, created_at, expires_at
		FROM entities WHERE row_id > ? AND expires_at > ?
		ORDER BY row_id LIMIT ?`
)

// mintAttempts bounds the key collision retry loop. With 256-bit random keys
// a collision is effectively impossible; the loop guards against a broken
// entropy source more than anything else.
const mintAttempts = 5

// SQLStore implements the entity repository with a SQLite backend.
//
// Write operations on a single key are linearized by a per-key lock held
// across the read-authorize-write sequence, so the ownership check always
// sees the owner current at the serialization point. Keys lock
// independently; there is no global write lock.
type SQLStore struct {
	db     *sql.DB
	logger *zap.SugaredLogger
	locks  keyLocks
	pub    Publisher

	// now is the store's clock, swappable in tests.
	now func() time.Time
}

// NewSQLStore creates an entity store over an already-migrated database.
func NewSQLStore(db *sql.DB, lg *zap.SugaredLogger) *SQLStore {
	if lg == nil {
		lg = logger.Logger
	}
	return &SQLStore{
		db:     db,
		logger: lg,
		now:    time.Now,
	}
}

// SetPublisher wires the event hub. Events committed before this call are
// not replayed; the stream is live-only.
func (s *SQLStore) SetPublisher(p Publisher) {
	s.pub = p
}

func (s *SQLStore) publish(kind entity.EventKind, key entity.Key, owner, oldOwner entity.Owner, at time.Time) {
	if s.pub == nil {
		return
	}
	s.pub.Publish(entity.Event{
		Kind:     kind,
		Key:      key,
		Owner:    owner,
		OldOwner: oldOwner,
		At:       at,
	})
}

// Create mints a fresh key and inserts the entity. The key is guaranteed
// never to have been assigned before, including to since-deleted entities.
func (s *SQLStore) Create(ctx context.Context, owner entity.Owner, payload []byte, contentType string, attrs map[string]entity.Value, ttl time.Duration) (*entity.Entity, error) {
	if owner == "" {
		return nil, errors.NewInvalidInputf("owner must not be empty")
	}
	now := s.now()
	expiry, err := entity.ComputeExpiry(now, ttl)
	if err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = DefaultContentType
	}
	attrsJSON, err := marshalAttributes(attrs)
	if err != nil {
		return nil, err
	}

	var key entity.Key
	for attempt := 0; ; attempt++ {
		k, err := entity.MintKey()
		if err != nil {
			return nil, err
		}
		var taken bool
		if err := s.db.QueryRowContext(ctx, keyTakenQuery, k, k).Scan(&taken); err != nil {
			return nil, errors.WrapUnavailable(err, "check key availability")
		}
		if !taken {
			key = k
			break
		}
		if attempt+1 >= mintAttempts {
			return nil, errors.New("exhausted entity key mint attempts")
		}
	}

	_, err = s.db.ExecContext(ctx, entityInsertQuery,
		key, owner, payload, contentType, attrsJSON,
		now.UTC().Format(time.RFC3339Nano), expiry.UnixNano(),
	)
	if err != nil {
		return nil, errors.WrapUnavailable(err, "insert entity")
	}

	s.publish(entity.EventCreated, key, owner, "", now)
	s.logger.Debugw("entity created",
		logger.FieldEntityKey, key,
		logger.FieldOwner, owner,
		logger.FieldTTL, ttl.String(),
	)

	return &entity.Entity{
		Key:         key,
		Owner:       owner,
		Payload:     payload,
		ContentType: contentType,
		Attributes:  attrs,
		CreatedAt:   now,
		ExpiresAt:   expiry,
	}, nil
}

// Get loads one entity by key. Expired entities are indistinguishable from
// absent ones.
func (s *SQLStore) Get(ctx context.Context, key entity.Key) (*entity.Entity, error) {
	row := s.db.QueryRowContext(ctx, entityGetQuery, key, s.now().UnixNano())
	e, _, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(errors.ErrNotFound, "entity %s", key)
		}
		return nil, errors.WrapUnavailable(err, "load entity")
	}
	return e, nil
}

// Exists reports whether a live entity with the given key exists, without
// materializing its payload.
func (s *SQLStore) Exists(ctx context.Context, key entity.Key) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, entityExistsQuery, key, s.now().UnixNano()).Scan(&exists); err != nil {
		return false, errors.WrapUnavailable(err, "check entity existence")
	}
	return exists, nil
}

// UpdateFields carries the optional mutations of an Update call. Nil fields
// are left untouched. Attributes, when set, replaces the attribute map
// wholesale. TTL, when set, restarts the entity's lifetime from now.
type UpdateFields struct {
	Payload     *[]byte
	ContentType *string
	Attributes  *map[string]entity.Value
	TTL         *time.Duration
}

func (f UpdateFields) empty() bool {
	return f.Payload == nil && f.ContentType == nil && f.Attributes == nil && f.TTL == nil
}

// Update applies the given field changes to an entity the caller owns.
// Content changes emit an updated event; a TTL change emits an extended
// event (both, when an update carries both).
func (s *SQLStore) Update(ctx context.Context, key entity.Key, caller entity.Owner, fields UpdateFields) error {
	if fields.empty() {
		return errors.NewInvalidInputf("update must change at least one field")
	}
	now := s.now()
	var expiry time.Time
	if fields.TTL != nil {
		var err error
		expiry, err = entity.ComputeExpiry(now, *fields.TTL)
		if err != nil {
			return err
		}
	}

	unlock := s.locks.lock(key)
	defer unlock()

	owner, err := s.visibleOwner(ctx, key, now)
	if err != nil {
		return err
	}
	if entity.Authorize(entity.OpUpdate, caller, owner) != entity.Allow {
		return errors.Wrapf(errors.ErrForbidden, "caller %s does not own entity %s", caller, key)
	}

	set := make([]string, 0, 4)
	args := make([]any, 0, 5)
	if fields.Payload != nil {
		set = append(set, "payload = ?")
		args = append(args, *fields.Payload)
	}
	if fields.ContentType != nil {
		set = append(set, "content_type = ?")
		args = append(args, *fields.ContentType)
	}
	if fields.Attributes != nil {
		attrsJSON, err := marshalAttributes(*fields.Attributes)
		if err != nil {
			return err
		}
		set = append(set, "attributes = ?")
		args = append(args, attrsJSON)
	}
	if fields.TTL != nil {
		set = append(set, "expires_at = ?")
		args = append(args, expiry.UnixNano())
	}
	args = append(args, key)

	updateQuery := "UPDATE entities SET " + strings.Join(set, ", ") + " WHERE key = ?"
	if _, err := s.db.ExecContext(ctx, updateQuery, args...); err != nil {
		return errors.WrapUnavailable(err, "update entity")
	}

	if fields.Payload != nil || fields.ContentType != nil || fields.Attributes != nil {
		s.publish(entity.EventUpdated, key, owner, "", now)
	}
	if fields.TTL != nil {
		s.publish(entity.EventExtended, key, owner, "", now)
		s.logger.Debugw("entity lifetime extended",
			logger.FieldEntityKey, key,
			logger.FieldExpiresAt, expiry,
		)
	}
	return nil
}

// Delete removes an entity the caller owns and tombstones its key so it is
// never reissued.
func (s *SQLStore) Delete(ctx context.Context, key entity.Key, caller entity.Owner) error {
	now := s.now()

	unlock := s.locks.lock(key)
	defer unlock()

	owner, err := s.visibleOwner(ctx, key, now)
	if err != nil {
		return err
	}
	if entity.Authorize(entity.OpDelete, caller, owner) != entity.Allow {
		return errors.Wrapf(errors.ErrForbidden, "caller %s does not own entity %s", caller, key)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapUnavailable(err, "begin delete transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, entityDeleteQuery, key); err != nil {
		return errors.WrapUnavailable(err, "delete entity")
	}
	if _, err := tx.ExecContext(ctx, tombstoneInsertQuery, key, now.UTC().Format(time.RFC3339Nano)); err != nil {
		return errors.WrapUnavailable(err, "record deleted key")
	}
	if err := tx.Commit(); err != nil {
		return errors.WrapUnavailable(err, "commit delete")
	}

	s.publish(entity.EventDeleted, key, owner, "", now)
	s.logger.Debugw("entity deleted", logger.FieldEntityKey, key, logger.FieldOwner, owner)
	return nil
}

// TransferOwnership atomically reassigns an entity to a new owner. The old
// owner loses mutation rights the instant the transfer commits.
func (s *SQLStore) TransferOwnership(ctx context.Context, key entity.Key, caller, newOwner entity.Owner) error {
	if newOwner == "" {
		return errors.NewInvalidInputf("new owner must not be empty")
	}
	now := s.now()

	unlock := s.locks.lock(key)
	defer unlock()

	owner, err := s.visibleOwner(ctx, key, now)
	if err != nil {
		return err
	}
	if entity.Authorize(entity.OpTransfer, caller, owner) != entity.Allow {
		return errors.Wrapf(errors.ErrForbidden, "caller %s does not own entity %s", caller, key)
	}
	if newOwner == owner {
		return errors.NewInvalidInputf("entity %s is already owned by %s", key, newOwner)
	}

	if _, err := s.db.ExecContext(ctx, "UPDATE entities SET owner = ? WHERE key = ?", newOwner, key); err != nil {
		return errors.WrapUnavailable(err, "transfer entity ownership")
	}

	s.publish(entity.EventOwnerChanged, key, newOwner, owner, now)
	s.logger.Infow("entity ownership transferred",
		logger.FieldEntityKey, key,
		logger.FieldOwner, newOwner,
	)
	return nil
}

// visibleOwner loads the owner of a live entity. Rows past their expiry
// report as not found; the sweeper reclaims them later.
func (s *SQLStore) visibleOwner(ctx context.Context, key entity.Key, now time.Time) (entity.Owner, error) {
	var owner string
	var expires int64
	err := s.db.QueryRowContext(ctx, entityOwnerQuery, key).Scan(&owner, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errors.Wrapf(errors.ErrNotFound, "entity %s", key)
	}
	if err != nil {
		return "", errors.WrapUnavailable(err, "load entity owner")
	}
	if expires <= now.UnixNano() {
		return "", errors.Wrapf(errors.ErrNotFound, "entity %s", key)
	}
	return entity.Owner(owner), nil
}

func marshalAttributes(attrs map[string]entity.Value) (string, error) {
	if len(attrs) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal entity attributes")
	}
	return string(b), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*entity.Entity, int64, error) {
	var (
		rowID        int64
		key          string
		owner        string
		payload      []byte
		contentType  string
		attrsJSON    string
		createdAt    string
		expiresNanos int64
	)
	if err := row.Scan(&rowID, &key, &owner, &payload, &contentType, &attrsJSON, &createdAt, &expiresNanos); err != nil {
		return nil, 0, err
	}

	attrs := make(map[string]entity.Value)
	if err := json.Unmarshal([]byte(attrsJSON), &attrs); err != nil {
		return nil, 0, errors.Wrapf(err, "corrupt attributes for entity %s", key)
	}
	if len(attrs) == 0 {
		attrs = nil
	}
	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "corrupt created_at for entity %s", key)
	}

	return &entity.Entity{
		Key:         entity.Key(key),
		Owner:       entity.Owner(owner),
		Payload:     payload,
		ContentType: contentType,
		Attributes:  attrs,
		CreatedAt:   created,
		ExpiresAt:   time.Unix(0, expiresNanos),
	}, rowID, nil
}

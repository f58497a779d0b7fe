package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/spuro/spuro/entity"
	"github.com/spuro/spuro/errors"
)

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewSQLStore(conn, nil), mock
}

func TestGetStorageFailureIsUnavailable(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT row_id, key, owner").
		WillReturnError(fmt.Errorf("disk I/O error"))

	key, _ := entity.MintKey()
	_, err := store.Get(context.Background(), key)
	if !errors.IsUnavailable(err) {
		t.Errorf("Get() err = %v, want Unavailable", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateInsertFailureIsUnavailable(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"taken"}).AddRow(false))
	mock.ExpectExec("INSERT INTO entities").
		WillReturnError(fmt.Errorf("database is locked"))

	_, err := store.Create(context.Background(), "owner-1", nil, "", nil, time.Hour)
	if !errors.IsUnavailable(err) {
		t.Errorf("Create() err = %v, want Unavailable", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpdateOwnerLoadFailureIsUnavailable(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT owner, expires_at").
		WillReturnError(fmt.Errorf("disk I/O error"))

	key, _ := entity.MintKey()
	payload := []byte("x")
	err := store.Update(context.Background(), key, "owner-1", UpdateFields{Payload: &payload})
	if !errors.IsUnavailable(err) {
		t.Errorf("Update() err = %v, want Unavailable", err)
	}
}

func TestExistsStorageFailureIsUnavailable(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnError(fmt.Errorf("disk I/O error"))

	key, _ := entity.MintKey()
	_, err := store.Exists(context.Background(), key)
	if !errors.IsUnavailable(err) {
		t.Errorf("Exists() err = %v, want Unavailable", err)
	}
}

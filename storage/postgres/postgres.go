// Package postgres implements the connection storage on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	logging "github.com/ipfs/go-log/v2"
	"github.com/lib/pq"

	"github.com/ipfs-force-community/sophon-connector/storage"
)

var log = logging.Logger("storage_postgres")

const DefaultTable = "connector_kv"

var _ storage.Storage = (*Storage)(nil)

type Storage struct {
	db    *sql.DB
	table string

	getStmt, setStmt, removeStmt string
}

// New opens connection and creates the key-value table when missing.
func New(ctx context.Context, connection, table string) (*Storage, error) {
	db, err := sql.Open("postgres", connection)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to DB in %s: %w", connection, err)
	}
	s, err := newWithDB(ctx, db, table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func newWithDB(ctx context.Context, db *sql.DB, table string) (*Storage, error) {
	if table == "" {
		table = DefaultTable
	}
	quoted := pq.QuoteIdentifier(table)
	s := &Storage{
		db:         db,
		table:      table,
		getStmt:    fmt.Sprintf("SELECT value FROM %s WHERE key = $1", quoted),
		setStmt:    fmt.Sprintf("INSERT INTO %s (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value", quoted),
		removeStmt: fmt.Sprintf("DELETE FROM %s WHERE key = $1", quoted),
	}

	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (key TEXT PRIMARY KEY, value TEXT NOT NULL)", quoted)
	if _, err := db.ExecContext(ctx, create); err != nil {
		return nil, fmt.Errorf("create table %s: %w", table, err)
	}
	log.Infof("postgres storage ready on table %s", table)
	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) GetItem(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.getStmt, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get item %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Storage) SetItem(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, s.setStmt, key, value); err != nil {
		return fmt.Errorf("set item %s: %w", key, err)
	}
	return nil
}

func (s *Storage) RemoveItem(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.removeStmt, key); err != nil {
		return fmt.Errorf("remove item %s: %w", key, err)
	}
	return nil
}

package db

import (
	"bytes"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/lib/pq"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS hashchain_kv (
	k BYTEA PRIMARY KEY,
	v BYTEA NOT NULL
)`

const (
	pgSelect = `SELECT v FROM hashchain_kv WHERE k = $1`
	pgExists = `SELECT EXISTS(SELECT 1 FROM hashchain_kv WHERE k = $1)`
	pgUpsert = `INSERT INTO hashchain_kv (k, v) VALUES ($1, $2)
		ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v`
	pgDelete = `DELETE FROM hashchain_kv WHERE k = $1`
	// bytea compares bytewise, so ORDER BY k matches LevelDB key order
	pgScan = `SELECT k, v FROM hashchain_kv WHERE k >= $1 ORDER BY k`
)

// PostgresProvider implements IterableProvider on a single bytea table
type PostgresProvider struct {
	once sync.Once
	db   *sql.DB
}

// NewPostgresProvider connects with a lib/pq DSN and ensures the table exists
func NewPostgresProvider(dsn string) (IterableProvider, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if _, err := conn.Exec(postgresSchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &PostgresProvider{db: conn}, nil
}

// Get retrieves a value by key
func (p *PostgresProvider) Get(key []byte) ([]byte, error) {
	var value []byte
	err := p.db.QueryRow(pgSelect, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Put stores a key-value pair
func (p *PostgresProvider) Put(key, value []byte) error {
	_, err := p.db.Exec(pgUpsert, key, value)
	return err
}

// Delete removes a key-value pair
func (p *PostgresProvider) Delete(key []byte) error {
	_, err := p.db.Exec(pgDelete, key)
	return err
}

// Has checks if a key exists
func (p *PostgresProvider) Has(key []byte) (bool, error) {
	var exists bool
	err := p.db.QueryRow(pgExists, key).Scan(&exists)
	return exists, err
}

// Close closes the connection pool
func (p *PostgresProvider) Close() error {
	var err error
	p.once.Do(func() {
		err = p.db.Close()
	})
	return err
}

// Batch returns a batch applied inside one SQL transaction
func (p *PostgresProvider) Batch() DatabaseBatch {
	return &PostgresBatch{db: p.db}
}

// IteratePrefix implements IterableProvider for Postgres
func (p *PostgresProvider) IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error {
	rows, err := p.db.Query(pgScan, prefix)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key, value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return err
		}
		if !bytes.HasPrefix(key, prefix) {
			break
		}
		if !callback(key, value) {
			break
		}
	}
	return rows.Err()
}

type pgOp struct {
	key    []byte
	value  []byte
	delete bool
}

// PostgresBatch implements DatabaseBatch for Postgres
type PostgresBatch struct {
	db  *sql.DB
	ops []pgOp
}

// Put adds a key-value pair to the batch
func (b *PostgresBatch) Put(key, value []byte) {
	b.ops = append(b.ops, pgOp{key: key, value: value})
}

// Delete adds a deletion to the batch
func (b *PostgresBatch) Delete(key []byte) {
	b.ops = append(b.ops, pgOp{key: key, delete: true})
}

// Write commits all operations in the batch
func (b *PostgresBatch) Write() error {
	tx, err := b.db.Begin()
	if err != nil {
		return err
	}
	for _, op := range b.ops {
		if op.delete {
			_, err = tx.Exec(pgDelete, op.key)
		} else {
			_, err = tx.Exec(pgUpsert, op.key, op.value)
		}
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Reset clears the batch
func (b *PostgresBatch) Reset() {
	b.ops = b.ops[:0]
}

// Close releases batch resources
func (b *PostgresBatch) Close() error {
	b.ops = nil
	return nil
}

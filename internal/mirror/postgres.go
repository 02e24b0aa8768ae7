package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
)

const (
	postgresMirrorTableName  = "chatsync_mirror"
	postgresOperationTimeout = 5 * time.Second
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// PostgresMirror keeps fragments in a single key/value table. The connection
// and schema are set up lazily on first use.
type PostgresMirror struct {
	dsn       string
	tableName string
	openDB    sqlOpenFunc

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

func NewPostgresMirror(dsn string) (*PostgresMirror, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres mirror dsn is required")
	}
	return &PostgresMirror{
		dsn:       dsn,
		tableName: postgresMirrorTableName,
		openDB:    sql.Open,
	}, nil
}

func (m *PostgresMirror) ensureReady() error {
	if m == nil {
		return fmt.Errorf("postgres mirror is nil")
	}
	m.initOnce.Do(func() {
		db, err := m.openDB("postgres", m.dsn)
		if err != nil {
			m.initErr = err
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), postgresOperationTimeout)
		defer cancel()

		query := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				fragment_key TEXT PRIMARY KEY,
				payload TEXT NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, pq.QuoteIdentifier(m.tableName))
		if _, err := db.ExecContext(ctx, query); err != nil {
			_ = db.Close()
			m.initErr = err
			return
		}
		m.db = db
	})
	return m.initErr
}

func (m *PostgresMirror) Save(key string, value any) error {
	if m == nil || strings.TrimSpace(key) == "" {
		return nil
	}
	if err := m.ensureReady(); err != nil {
		return err
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s (fragment_key, payload, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (fragment_key)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()`, pq.QuoteIdentifier(m.tableName))
	_, err = m.db.ExecContext(ctx, query, key, string(payload))
	return err
}

func (m *PostgresMirror) Load(key string, out any) bool {
	if m == nil {
		return false
	}
	if err := m.ensureReady(); err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT payload FROM %s WHERE fragment_key = $1", pq.QuoteIdentifier(m.tableName))
	var payload string
	if err := m.db.QueryRowContext(ctx, query, key).Scan(&payload); err != nil {
		return false
	}
	return json.Unmarshal([]byte(payload), out) == nil
}

func (m *PostgresMirror) Clear(keys ...string) error {
	if m == nil || len(keys) == 0 {
		return nil
	}
	if err := m.ensureReady(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf("DELETE FROM %s WHERE fragment_key = ANY($1)", pq.QuoteIdentifier(m.tableName))
	_, err := m.db.ExecContext(ctx, query, pq.Array(keys))
	return err
}

func (m *PostgresMirror) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}

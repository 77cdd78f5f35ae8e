// Package postgres provides a record store backed by a PostgreSQL table.
//
// Field identifiers are column names. The table must have a primary key
// column named id; the harvester never creates or migrates it.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kornews/internal/config"
	"kornews/internal/logger"
	"kornews/internal/store"
)

// PgxIface is the subset of *pgxpool.Pool the store needs.
type PgxIface interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Ensure Store implements store.Store.
var _ store.Store = (*Store)(nil)

// Store reads and writes article rows in one table.
type Store struct {
	pool   PgxIface
	logger *logger.Logger
	table  string
}

// Open connects a pool using cfg and the given DSN.
func Open(ctx context.Context, cfg config.PostgresConfig, dsn string, log *logger.Logger) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	return New(pool, cfg.Table, log), nil
}

// New wraps an existing pool. table may be schema-qualified.
func New(pool PgxIface, table string, log *logger.Logger) *Store {
	return &Store{
		pool:   pool,
		logger: log,
		table:  pgx.Identifier(strings.Split(table, ".")).Sanitize(),
	}
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", store.ErrRequest, err)
	}

	return nil
}

// Project selects one column over all rows.
func (s *Store) Project(ctx context.Context, fieldID string) ([]store.Record, error) {
	col := quote(fieldID)
	query := "SELECT id::text, " + col + "::text FROM " + s.table + " ORDER BY id"

	return s.queryRecords(ctx, fieldID, query)
}

// FindByField selects the rows whose column equals value.
func (s *Store) FindByField(ctx context.Context, fieldID, value string) ([]store.Record, error) {
	col := quote(fieldID)
	query := "SELECT id::text, " + col + "::text FROM " + s.table + " WHERE " + col + " = $1"

	return s.queryRecords(ctx, fieldID, query, value)
}

// Create inserts one row and returns its id.
func (s *Store) Create(ctx context.Context, fields map[string]any) (string, error) {
	query, args, err := s.insertStatement(fields)
	if err != nil {
		return "", err
	}

	var id string
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return "", fmt.Errorf("%w: insert failed: %w", store.ErrRequest, err)
	}

	s.logger.Debug("Inserted row", "table", s.table, "id", id)

	return id, nil
}

func (s *Store) insertStatement(fields map[string]any) (string, []any, error) {
	if len(fields) == 0 {
		return "", nil, store.ErrEmptyFieldMap
	}

	cols := make([]string, 0, len(fields))
	for col := range fields {
		cols = append(cols, col)
	}

	slices.Sort(cols)

	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))

	for i, col := range cols {
		quoted[i] = quote(col)
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = fields[col]
	}

	query := "INSERT INTO " + s.table + " (" + strings.Join(quoted, ", ") + ") VALUES (" +
		strings.Join(placeholders, ", ") + ") RETURNING id::text"

	return query, args, nil
}

func (s *Store) queryRecords(ctx context.Context, fieldID, query string, args ...any) ([]store.Record, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query failed: %w", store.ErrRequest, err)
	}
	defer rows.Close()

	var out []store.Record

	for rows.Next() {
		var (
			id    string
			value sql.NullString
		)

		if err := rows.Scan(&id, &value); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		fields := map[string]any{}
		if value.Valid {
			fields[fieldID] = value.String
		}

		out = append(out, store.Record{ID: id, Fields: fields})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: row iteration failed: %w", store.ErrRequest, err)
	}

	return out, nil
}

func quote(col string) string {
	return pgx.Identifier{col}.Sanitize()
}

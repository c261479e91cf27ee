package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Skufu/GlucoRisk/internal/config"
	"github.com/Skufu/GlucoRisk/internal/logger"
	"github.com/Skufu/GlucoRisk/internal/patient"
)

var (
	ErrNotFound    = errors.New("patient not found")
	ErrUnavailable = errors.New("database unavailable")
)

const lookupQuery = `SELECT pregnancies::float8, glucose::float8, bloodpressure::float8,
	skinthickness::float8, insulin::float8, bmi::float8,
	diabetespedigreefunction::float8, age::float8
FROM diabetes_inference
WHERE id = $1`

// Conn is a single pooled connection. Release returns it to the pool.
type Conn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Release()
}

type Pool interface {
	Acquire(ctx context.Context) (Conn, error)
	Ping(ctx context.Context) error
	Close()
}

// Store reads patient feature rows from Postgres.
type Store struct {
	pool Pool
	log  *logger.Logger
}

func New(pool Pool, log *logger.Logger) *Store {
	return &Store{pool: pool, log: log}
}

// Connect builds a pgx pool and waits for the first successful ping,
// retrying with exponential backoff. A database that stays down is logged
// and the store is still returned; lookups then fail with ErrUnavailable
// until the database comes back.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	s := New(pgxPool{pool}, log)
	if err := s.waitReady(ctx, cfg.ConnectRetries); err != nil {
		log.Warn("database not reachable, lookups disabled until it recovers", "error", err)
	} else {
		log.Info("database connected", "host", poolCfg.ConnConfig.Host, "db", poolCfg.ConnConfig.Database)
	}
	return s, nil
}

func (s *Store) waitReady(ctx context.Context, retries int) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)

	return backoff.RetryNotify(func() error {
		return s.Ping(ctx)
	}, policy, func(err error, wait time.Duration) {
		s.log.Warn("database ping failed, retrying", "error", err, "wait", wait)
	})
}

// Lookup fetches the feature row for id. The pooled connection is released
// on every path.
func (s *Store) Lookup(ctx context.Context, id int64) (patient.Record, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return patient.Record{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer conn.Release()

	var v patient.Vector
	dest := make([]any, len(v))
	for i := range v {
		dest[i] = &v[i]
	}

	err = conn.QueryRow(ctx, lookupQuery, id).Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return patient.Record{}, ErrNotFound
	}
	if err != nil {
		return patient.Record{}, fmt.Errorf("query patient %d: %w", id, err)
	}

	return patient.FromVector(v), nil
}

// Ping checks database health
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.log.Info("closing database connection pool")
	s.pool.Close()
}

type pgxPool struct {
	*pgxpool.Pool
}

func (p pgxPool) Acquire(ctx context.Context) (Conn, error) {
	c, err := p.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return c, nil
}

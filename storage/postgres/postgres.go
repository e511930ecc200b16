package postgres

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	"fulfillment/config"
	"fulfillment/pkg/logger"
	"fulfillment/storage"
)

type Store struct {
	pool *pgxpool.Pool
	log  logger.ILogger
}

func New(ctx context.Context, cfg config.Config, log logger.ILogger) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.PostgresURL())
	if err != nil {
		log.Error("error while parsing Postgres config", logger.Error(err))
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Error("failed to connect Postgres", logger.Error(err))
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		log.Error("failed to ping Postgres", logger.Error(err))
		return nil, err
	}

	if err := Migrate(cfg, log, true); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info("Postgres connected")

	return &Store{
		pool: pool,
		log:  log,
	}, nil
}

// Migrate applies (up=true) or rolls back every migration under cfg.MigrationsPath.
func Migrate(cfg config.Config, log logger.ILogger, up bool) error {
	mPath, err := filepath.Abs(cfg.MigrationsPath)
	if err != nil {
		return err
	}

	m, err := migrate.New("file://"+mPath, cfg.PostgresURL())
	if err != nil {
		log.Error("migration init error", logger.String("path", mPath), logger.Error(err))
		return err
	}
	defer m.Close()

	if up {
		err = m.Up()
	} else {
		err = m.Down()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("no migrations to apply")
		return nil
	}
	if err != nil {
		log.Error("migration error", logger.Bool("up", up), logger.Error(err))
		return err
	}

	log.Info("migrations applied", logger.Bool("up", up))
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return wrapErr(err)
	}
	return nil
}

func (s *Store) GetPool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) Order() storage.IOrderStorage       { return NewOrderRepo(s.pool, s.log) }
func (s *Store) Table() storage.ITableStorage       { return NewTableRepo(s.pool, s.log) }
func (s *Store) Location() storage.ILocationStorage { return NewLocationRepo(s.pool, s.log) }

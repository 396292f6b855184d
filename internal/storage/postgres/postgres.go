package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jeovahfialho/b3-pregao/internal/config"
)

type DB struct {
	pool *pgxpool.Pool
}

func NewDB(cfg *config.Config) (*DB, error) {
	poolConfig, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("erro ao criar pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("erro ao conectar: %w", err)
	}

	return &DB{pool: pool}, nil
}

func PoolConfig(cfg *config.Config) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("erro ao parsear config: %w", err)
	}

	poolConfig.MaxConns = cfg.DatabaseMaxConns
	poolConfig.MinConns = cfg.DatabaseMinConns
	poolConfig.MaxConnLifetime = cfg.DatabaseMaxConnLife
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	return poolConfig, nil
}

// SchemaSQL cria a tabela de boletins; a chave (trade_date, ticker) impede
// que o mesmo consolidado seja carregado duas vezes.
func SchemaSQL(table string) string {
	name := pgx.Identifier{table}.Sanitize()
	return fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            trade_date      DATE        NOT NULL,
            ticker          VARCHAR(32) NOT NULL,
            first_price     NUMERIC(18,6),
            min_price       NUMERIC(18,6),
            max_price       NUMERIC(18,6),
            last_price      NUMERIC(18,6),
            avg_price       NUMERIC(18,6),
            oscillation_pct NUMERIC(12,6),
            trade_qty       BIGINT      NOT NULL DEFAULT 0,
            trade_amount    NUMERIC(24,6),
            PRIMARY KEY (trade_date, ticker)
        )`, name)
}

func (db *DB) EnsureSchema(ctx context.Context, table string) error {
	if _, err := db.pool.Exec(ctx, SchemaSQL(table)); err != nil {
		return fmt.Errorf("erro ao criar tabela %s: %w", table, err)
	}
	return nil
}

func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

func (db *DB) Close() {
	db.pool.Close()
}

func (db *DB) HealthCheck(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

func (db *DB) Stats() *pgxpool.Stat {
	return db.pool.Stat()
}

// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"loan-assistant/internal/common/config"
)

// PostgresClient holds the pool behind the turn_events table.
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres opens the lib/pq pool. Nothing is dialed until Ping.
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	configurePool(db, cfg)
	return &PostgresClient{DB: db}, nil
}

func configurePool(db *sql.DB, cfg config.PostgresConfig) {
	life := time.Duration(cfg.ConnMaxLife) * time.Second
	if life <= 0 {
		life = 5 * time.Minute
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(life)
	db.SetConnMaxIdleTime(life)
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

// RegisterStats exports the pool statistics as loan_assistant_db_* series on
// reg. Registering the same pool twice is not an error.
func (c *PostgresClient) RegisterStats(reg prometheus.Registerer) error {
	err := reg.Register(collectors.NewDBStatsCollector(c.DB, "loan_assistant"))
	var already prometheus.AlreadyRegisteredError
	if stderrors.As(err, &already) {
		return nil
	}
	return err
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

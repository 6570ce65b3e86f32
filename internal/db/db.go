// internal/db/db.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/unclebandit/mica-backend/internal/config"
)

// Open connects to PostgreSQL and pings it before handing the pool back.
func Open(ctx context.Context, cfg config.DataBaseConfig, log zerolog.Logger) (*sql.DB, error) {
	log.Info().Str("host", cfg.Host).Str("name", cfg.Name).Str("user", cfg.User).Msg("connecting to database")

	conn, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(20)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	log.Info().Msg("✅ connected to database")
	return conn, nil
}

// ExecFile runs a whole SQL script in one statement batch.
func ExecFile(ctx context.Context, conn *sql.DB, script string) error {
	_, err := conn.ExecContext(ctx, script)
	return err
}

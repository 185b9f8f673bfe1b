package probes

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lookout-dev/lookout/internal/assertions"
	"github.com/lookout-dev/lookout/internal/types"

	// Database drivers
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// CheckDatabase opens a connection to the configured database and pings it.
func CheckDatabase(ctx context.Context, config *types.DatabaseConfig) (Outcome, error) {
	timeout := config.Timeout

	if timeout == 0 {
		timeout = 10
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	var dsn string

	switch config.Type {
	case "postgres", "postgresql":
		dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", config.Host, config.Port, config.Username, config.Password, config.Database, config.SSLMode)
	case "mysql":
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
			config.Username, config.Password, config.Host, config.Port, config.Database)
	default:
		return Outcome{}, fmt.Errorf("unsupported database type: %s", config.Type)
	}

	// Use correct driver names for sql.Open
	driverName := config.Type
	if config.Type == "postgresql" {
		driverName = "postgres"
	}

	start := time.Now()

	db, err := sql.Open(driverName, dsn)

	if err != nil {
		return Outcome{}, fmt.Errorf("failed to open a database connection: %v", err)
	}

	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		elapsed := time.Since(start).Milliseconds()
		return Outcome{LatencyMs: elapsed}, fmt.Errorf("failed to ping database: %v", err)
	}

	elapsed := time.Since(start).Milliseconds()

	return Outcome{
		Facts:     assertions.ResponseFacts{JobKind: "database"},
		Timings:   Timings{ConnectMs: elapsed},
		LatencyMs: elapsed,
	}, nil
}

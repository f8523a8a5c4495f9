package health

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrVectorExtensionMissing is returned when the pgvector extension is not
// installed in the catalog database.
var ErrVectorExtensionMissing = errors.New("pgvector extension not installed")

// DBChecker reports whether the catalog database is reachable and able to
// answer vector queries.
type DBChecker struct {
	db *sql.DB
}

// NewDBChecker creates a new database health checker.
func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

// HealthCheck pings the database and verifies the vector extension.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	var version string
	err := d.db.QueryRowContext(ctx,
		`SELECT extversion FROM pg_extension WHERE extname = 'vector'`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrVectorExtensionMissing
	}
	if err != nil {
		return fmt.Errorf("check vector extension: %w", err)
	}
	return nil
}

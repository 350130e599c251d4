package otel

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/XSAM/otelsql"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// dbAttributes labels every SQL span and pool metric with the system and the
// database file name.
func dbAttributes(dataSourceName string) []attribute.KeyValue {
	return []attribute.KeyValue{
		semconv.DBSystemSqlite,
		semconv.DBNamespace(filepath.Base(dataSourceName)),
	}
}

// OpenDB opens the SQLite database behind the store and the queue, traced
// through otelsql. Row iteration and session resets produce no spans; every
// statement still does. Pragmas and migrations are left to sqlite.NewFromDB.
func OpenDB(dataSourceName string) (*sql.DB, error) {
	attrs := dbAttributes(dataSourceName)

	db, err := otelsql.Open("sqlite", dataSourceName,
		otelsql.WithAttributes(attrs...),
		otelsql.WithSpanOptions(otelsql.SpanOptions{
			OmitRows:             true,
			OmitConnResetSession: true,
			OmitConnectorConnect: true,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dataSourceName, err)
	}

	// Store and queue share one connection, so decisions are serialized and
	// SQLITE_BUSY never surfaces.
	db.SetMaxOpenConns(1)

	if _, err := otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(attrs...)); err != nil {
		db.Close()
		return nil, fmt.Errorf("registering db stats metrics: %w", err)
	}
	return db, nil
}

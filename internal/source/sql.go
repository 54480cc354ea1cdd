package source

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/snowflakedb/gosnowflake"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/ignite/segment-insights/internal/config"
	"github.com/ignite/segment-insights/internal/segmentation"
)

// SQLSource runs a query and hands back its result set as text.
// Every column is scanned as a string; NULL becomes "" and fails validation
// in the store like any other missing value.
type SQLSource struct {
	db    *sql.DB
	query string
}

// NewSQLSource creates a query-backed table loader.
func NewSQLSource(db *sql.DB, query string) *SQLSource {
	return &SQLSource{db: db, query: query}
}

// Load executes the query.
func (s *SQLSource) Load(ctx context.Context) (segmentation.Table, error) {
	rows, err := s.db.QueryContext(ctx, s.query)
	if err != nil {
		return segmentation.Table{}, fmt.Errorf("query customer table: %w", err)
	}
	defer rows.Close()

	header, err := rows.Columns()
	if err != nil {
		return segmentation.Table{}, fmt.Errorf("read columns: %w", err)
	}

	table := segmentation.Table{Header: header}
	vals := make([]sql.NullString, len(header))
	ptrs := make([]any, len(header))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return segmentation.Table{}, fmt.Errorf("scan row %d: %w", len(table.Rows)+1, err)
		}
		row := make([]string, len(vals))
		for i, v := range vals {
			row[i] = v.String
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return segmentation.Table{}, fmt.Errorf("iterate rows: %w", err)
	}
	return table, nil
}

// ==========================================
// CONNECTIONS
// ==========================================

// OpenDB opens and pings a database handle.
func OpenDB(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

// SQLiteDSN opens path read-only with a busy timeout.
// modernc.org/sqlite uses _pragma=name(value) syntax.
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=query_only(1)", path)
}

// SnowflakeDSN returns the configured connection string, or builds one from
// the individual settings.
func SnowflakeDSN(cfg config.SnowflakeConfig) (string, error) {
	if cfg.ConnectionString != "" {
		return cfg.ConnectionString, nil
	}
	dsn, err := gosnowflake.DSN(&gosnowflake.Config{
		Account:   cfg.Account,
		User:      cfg.User,
		Password:  cfg.Password,
		Database:  cfg.Database,
		Schema:    cfg.Schema,
		Warehouse: cfg.Warehouse,
	})
	if err != nil {
		return "", fmt.Errorf("build snowflake dsn: %w", err)
	}
	return dsn, nil
}

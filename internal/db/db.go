package db

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps the database connection together with the driver that opened it.
type DB struct {
	*sql.DB
	Driver string
}

// New opens a database from a connection string. postgres:// and postgresql:// URLs
// use lib/pq; sqlite:, file: and paths ending in .db use the pure Go SQLite driver.
func New(connectionString string) (*DB, error) {
	if connectionString == "" {
		return nil, fmt.Errorf("database connection string is required")
	}
	driver, dsn := driverFor(connectionString)
	if driver == "sqlite" {
		return openSQLite(dsn)
	}
	return openPostgres(dsn)
}

func driverFor(conn string) (string, string) {
	lower := strings.ToLower(conn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return "postgres", conn
	case strings.HasPrefix(lower, "sqlite://"):
		return "sqlite", conn[len("sqlite://"):]
	case strings.HasPrefix(lower, "sqlite:"):
		return "sqlite", conn[len("sqlite:"):]
	case strings.HasPrefix(lower, "file:"), strings.HasSuffix(lower, ".db"), conn == ":memory:":
		return "sqlite", conn
	}
	return "postgres", conn
}

func openSQLite(dsn string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// one connection: SQLite serializes writers and :memory: lives per connection
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		log.Printf("[db] busy_timeout not applied: %v", err)
	}
	return &DB{DB: sqlDB, Driver: "sqlite"}, nil
}

// openPostgres pings once and, when that fails on a DSN that does not pick an
// sslmode, tries again with sslmode=disable for local servers.
func openPostgres(dsn string) (*DB, error) {
	sqlDB, err := pingPostgres(dsn)
	if err != nil && !strings.Contains(strings.ToLower(dsn), "sslmode") {
		log.Printf("[db] postgres unreachable (%v), retrying with sslmode=disable", err)
		sqlDB, err = pingPostgres(withParam(dsn, "sslmode=disable"))
	}
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	return &DB{DB: sqlDB, Driver: "postgres"}, nil
}

func pingPostgres(dsn string) (*sql.DB, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping postgres database: %w", err)
	}
	return sqlDB, nil
}

func withParam(dsn, param string) string {
	if strings.Contains(dsn, "://") {
		if strings.Contains(dsn, "?") {
			return dsn + "&" + param
		}
		return dsn + "?" + param
	}
	// key=value form
	return dsn + " " + param
}

// HealthCheck verifies the database connection is healthy
func (db *DB) HealthCheck() error {
	return db.Ping()
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// RunMigrations applies the migrations compiled into the binary.
func (db *DB) RunMigrations() error {
	return db.RunMigrationsFS(migrationsFS, "migrations")
}

// RunMigrationsFS applies every NNN_name.sql file under dir that schema_migrations
// does not list yet, in version order, one transaction per file.
func (db *DB) RunMigrationsFS(fsys fs.FS, dir string) error {
	pending, err := readMigrations(fsys, dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	if len(pending) == 0 {
		log.Println("[db] no migrations found")
		return nil
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at BIGINT NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}
	applied, err := db.appliedVersions()
	if err != nil {
		return fmt.Errorf("failed to list applied migrations: %w", err)
	}

	for _, m := range pending {
		if applied[m.Number] {
			continue
		}
		log.Printf("[db] applying migration %03d_%s (%s)", m.Number, m.Name, db.Driver)
		if err := db.apply(m); err != nil {
			return fmt.Errorf("migration %03d_%s: %w", m.Number, m.Name, err)
		}
	}
	return nil
}

func (db *DB) apply(m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.SQL); err != nil {
		return err
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, name, applied_at) VALUES ($1, $2, $3)",
		m.Number, m.Name, time.Now().UnixMilli(),
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (db *DB) appliedVersions() (map[int]bool, error) {
	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// Migration is one numbered SQL file.
type Migration struct {
	Number int
	Name   string
	SQL    string
}

// readMigrations loads dir/*.sql, skipping files without a numeric "NNN_" prefix.
func readMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	files, err := fs.Glob(fsys, path.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}

	var out []Migration
	for _, file := range files {
		prefix, name, ok := strings.Cut(strings.TrimSuffix(path.Base(file), ".sql"), "_")
		if !ok {
			continue
		}
		number, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}
		body, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		out = append(out, Migration{Number: number, Name: name, SQL: string(body)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

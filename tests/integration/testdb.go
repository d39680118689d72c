// Package integration provides integration testing utilities for the
// storefront gateway. It uses testcontainers to spin up real PostgreSQL
// databases and drives the audit schema through the same migrations the
// deployment runs.
package integration

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/storefront/gateway/internal/infrastructure/migration"
)

// TestDB hands integration tests a migrated postgres audit database
// running in a throwaway container. Cleanup is registered on t; tests
// never tear it down themselves.
type TestDB struct {
	DB    *gorm.DB
	SqlDB *sql.DB
	DSN   string
	t     *testing.T
}

// NewTestDB boots a postgres container, applies the audit migrations, and
// connects GORM to the result.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	ctx := context.Background()

	container, dsn := startPostgres(t, ctx)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	migrateAuditSchema(t, dsn)

	db := openGorm(t, dsn)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return &TestDB{DB: db, SqlDB: sqlDB, DSN: dsn, t: t}
}

// CleanTables truncates every audit table, leaving the migration
// bookkeeping alone, so a subtest starts from a known-empty state.
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()

	var tables []string
	err := tdb.DB.Raw(
		`SELECT tablename FROM pg_tables WHERE schemaname = 'public' AND tablename <> 'schema_migrations'`,
	).Scan(&tables).Error
	require.NoError(tdb.t, err, "list audit tables")

	for _, table := range tables {
		require.NoError(tdb.t,
			tdb.DB.Exec(`TRUNCATE TABLE "`+table+`" CASCADE`).Error,
			"truncate %s", table)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (*tcpostgres.PostgresContainer, string) {
	t.Helper()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("gateway_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("gateway123"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "container connection string")
	return container, dsn
}

// migrateAuditSchema applies the versioned migrations through the same
// golang-migrate wrapper the migrate CLI uses against a deployment.
func migrateAuditSchema(t *testing.T, dsn string) {
	t.Helper()

	dir := findMigrationsPath()
	require.NotEmpty(t, dir, "migrations directory not found")

	m, err := migration.NewFromURL(dsn, dir, zap.NewNop())
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Up(), "apply audit migrations")
}

func openGorm(t *testing.T, dsn string) *gorm.DB {
	t.Helper()

	level := logger.Silent
	if os.Getenv("TEST_DB_DEBUG") != "" {
		level = logger.Info
	}

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	require.NoError(t, err, "connect to test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db
}

// findMigrationsPath walks up from this source file, then from the working
// directory, looking for the repository's migrations directory.
func findMigrationsPath() string {
	var roots []string
	if _, file, _, ok := runtime.Caller(0); ok {
		roots = append(roots, filepath.Dir(file))
	}
	if wd, err := os.Getwd(); err == nil {
		roots = append(roots, wd)
	}

	for _, root := range roots {
		dir := root
		for range 6 {
			candidate := filepath.Join(dir, "migrations")
			if st, err := os.Stat(candidate); err == nil && st.IsDir() {
				return candidate
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	return ""
}

// Command migrate manages the audit database schema. Only the postgres
// backend is migrated; the sqlite development store builds its schema on
// server boot and never goes through this tool.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/storefront/gateway/internal/infrastructure/config"
	"github.com/storefront/gateway/internal/infrastructure/logger"
	"github.com/storefront/gateway/internal/infrastructure/migration"
)

const defaultMigrationsDir = "migrations"

func main() {
	var (
		dirFlag  string
		logLevel string
	)
	flag.StringVar(&dirFlag, "path", "", "migrations directory (default: ./migrations)")
	flag.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	if err := run(log, dirFlag, args[0], args[1:]); err != nil {
		log.Fatal("Migration command failed",
			zap.String("command", args[0]),
			zap.Error(err),
		)
	}
}

// run dispatches a single CLI command. create and list work on the
// filesystem alone; everything else connects to the audit database.
func run(log *zap.Logger, dirFlag, command string, args []string) error {
	dir, err := migrationsDir(dirFlag)
	if err != nil {
		return err
	}
	log.Info("Running migration command",
		zap.String("command", command),
		zap.String("migrations_dir", dir),
	)

	switch command {
	case "create":
		return createMigration(log, dir, args)
	case "list":
		return listMigrations(log, dir)
	}

	m, cleanup, err := openMigrator(log, dir)
	if err != nil {
		return err
	}
	defer cleanup()

	return runSchemaCommand(log, m, command, args)
}

// migrationsDir resolves the migrations directory: the -path flag wins,
// then ./migrations, then migrations/ two levels above the executable
// (the layout a built binary sees from bin/migrate).
func migrationsDir(flagValue string) (string, error) {
	if flagValue != "" {
		return filepath.Abs(flagValue)
	}
	if _, err := os.Stat(defaultMigrationsDir); err == nil {
		return filepath.Abs(defaultMigrationsDir)
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "..", "..", defaultMigrationsDir)
		if _, err := os.Stat(candidate); err == nil {
			return filepath.Abs(candidate)
		}
	}
	return filepath.Abs(defaultMigrationsDir)
}

func createMigration(log *zap.Logger, dir string, args []string) error {
	if len(args) == 0 {
		return errors.New("migration name required: migrate create <name> [description]")
	}
	description := ""
	if len(args) > 1 {
		description = args[1]
	}

	mf, err := migration.CreateMigration(dir, args[0], description)
	if err != nil {
		return err
	}
	log.Info("Migration files created",
		zap.String("version", mf.Version),
		zap.String("up", mf.UpPath),
		zap.String("down", mf.DownPath),
	)
	return nil
}

func listMigrations(log *zap.Logger, dir string) error {
	names, err := migration.ListMigrations(dir)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		log.Info("Migrations directory is empty", zap.String("migrations_dir", dir))
		return nil
	}
	log.Info("Migrations on disk", zap.Int("count", len(names)))
	for _, name := range names {
		fmt.Println("  -", name)
	}
	return nil
}

// openMigrator loads the gateway configuration, connects to the postgres
// audit database, and binds a migrator to it. The cleanup closes both.
func openMigrator(log *zap.Logger, dir string) (*migration.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	if !cfg.Database.Enabled() {
		return nil, nil, errors.New("audit database not configured; set GATEWAY_DATABASE_DRIVER=postgres")
	}
	if cfg.Database.Driver != "postgres" {
		return nil, nil, fmt.Errorf("migrations only target the postgres audit store, not %q", cfg.Database.Driver)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("open audit database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping audit database: %w", err)
	}

	m, err := migration.New(db, dir, log)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	cleanup := func() {
		_ = m.Close()
		_ = db.Close()
	}
	return m, cleanup, nil
}

func runSchemaCommand(log *zap.Logger, m *migration.Migrator, command string, args []string) error {
	switch command {
	case "up":
		return m.Up()

	case "down":
		return m.Down()

	case "step":
		n, err := intArg(args, "step count", "migrate step <n>")
		if err != nil {
			return err
		}
		return m.Steps(n)

	case "goto":
		v, err := uintArg(args, "target version", "migrate goto <version>")
		if err != nil {
			return err
		}
		return m.GoTo(v)

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if version == 0 {
			log.Info("Schema has no applied migrations")
			return nil
		}
		log.Info("Current schema version",
			zap.Uint("version", version),
			zap.Bool("dirty", dirty),
		)
		return nil

	case "force":
		v, err := intArg(args, "version", "migrate force <version>")
		if err != nil {
			return err
		}
		return m.Force(v)

	case "drop":
		if !confirmed(args) {
			return errors.New("drop removes every object in the audit database; rerun as 'migrate drop -confirm'")
		}
		return m.Drop()

	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func intArg(args []string, what, usage string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%s required: %s", what, usage)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, args[0])
	}
	return n, nil
}

func uintArg(args []string, what, usage string) (uint, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%s required: %s", what, usage)
	}
	v, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, args[0])
	}
	return uint(v), nil
}

func confirmed(args []string) bool {
	for _, arg := range args {
		if arg == "-confirm" || arg == "--confirm" {
			return true
		}
	}
	return false
}

func printUsage() {
	fmt.Println(`Storefront Gateway audit schema migrations

Usage:
  migrate [flags] <command> [arguments]

Commands that only touch the filesystem:
  create <name> [desc]  Write an empty up/down SQL pair
  list                  List the up migrations in version order

Commands that run against the audit database:
  up                    Apply every pending migration
  down                  Roll back every applied migration
  step <n>              Apply n migrations; negative n rolls back
  goto <version>        Migrate the schema to an exact version
  version               Print the current schema version
  force <version>       Stamp the version without running SQL (dirty-state recovery)
  drop -confirm         Drop every object in the database

Flags:
  -path string          migrations directory (default: ./migrations)
  -log-level string     log level: debug, info, warn, error (default: info)

The database connection comes from the GATEWAY_DATABASE_* environment
variables (DRIVER, HOST, PORT, USER, PASSWORD, DBNAME, SSLMODE); the
driver must be postgres.

Examples:
  migrate up
  migrate step -1
  migrate create add_exemption_review_notes "Reviewer notes on VAT exemption requests"
  migrate version`)
}

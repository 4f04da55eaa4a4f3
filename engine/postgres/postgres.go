package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/bountybase/engine/engine/log"
	"github.com/bxcodec/dbresolver/v2"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute
)

var (
	credentialsPattern = regexp.MustCompile(`://[^@\s]+@`)
	passwordPattern    = regexp.MustCompile(`(?i)(password=)([^\s&]+)`)
	dbNamePattern      = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,62}$`)
)

// Connection is the hub for the engine's postgres connections. Writes go
// to the primary; reads round-robin across the replica set.
type Connection struct {
	PrimaryDSN         string
	ReplicaDSN         string
	DatabaseName       string
	MigrationsPath     string
	Logger             log.Logger
	MaxOpenConnections int
	MaxIdleConnections int

	mu        sync.RWMutex
	resolver  dbresolver.DB
	connected bool
}

func (c *Connection) initDefaults() {
	if c.Logger == nil {
		c.Logger = &log.NoneLogger{}
	}

	if c.MaxOpenConnections <= 0 {
		c.MaxOpenConnections = defaultMaxOpenConns
	}

	if c.MaxIdleConnections <= 0 {
		c.MaxIdleConnections = defaultMaxIdleConns
	}
}

// Connect opens the primary and replica pools, runs pending migrations
// against the primary, and verifies reachability.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connectLocked(ctx)
}

func (c *Connection) connectLocked(ctx context.Context) error {
	c.initDefaults()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled before database connection: %w", err)
	}

	if c.resolver != nil {
		if err := c.closeLocked(); err != nil {
			c.Logger.Warnf("failed to close previous connection before reconnect: %v", err)
		}
	}

	c.Logger.Info("Connecting to primary and replica databases...")

	primary, err := c.open(c.PrimaryDSN, "primary")
	if err != nil {
		return err
	}

	var success bool

	defer func() {
		if !success {
			primary.Close()
		}
	}()

	replica, err := c.open(c.ReplicaDSN, "replica")
	if err != nil {
		return err
	}

	defer func() {
		if !success {
			replica.Close()
		}
	}()

	resolver := dbresolver.New(
		dbresolver.WithPrimaryDBs(primary),
		dbresolver.WithReplicaDBs(replica),
		dbresolver.WithLoadBalancer(dbresolver.RoundRobinLB),
	)
	if resolver == nil {
		return errors.New("resolver returned nil connection")
	}

	if err := c.migrate(primary); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled before ping: %w", err)
	}

	if err := resolver.PingContext(ctx); err != nil {
		c.Logger.Errorf("failed to ping database: %v", err)
		return fmt.Errorf("failed to ping database: %w", err)
	}

	c.resolver = resolver
	c.connected = true
	success = true

	c.Logger.Info("Connected to postgres")

	return nil
}

func (c *Connection) open(dsn, role string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		sanitized := sanitizeSensitiveError(err)
		c.Logger.Errorf("failed to connect to %s database: %s", role, sanitized)

		return nil, fmt.Errorf("failed to connect to %s database: %s", role, sanitized)
	}

	db.SetMaxOpenConns(c.MaxOpenConnections)
	db.SetMaxIdleConns(c.MaxIdleConnections)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	return db, nil
}

// DB returns the resolver, connecting lazily on first use.
func (c *Connection) DB(ctx context.Context) (dbresolver.DB, error) {
	c.mu.RLock()

	if c.resolver != nil {
		db := c.resolver
		c.mu.RUnlock()

		return db, nil
	}

	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resolver != nil {
		return c.resolver, nil
	}

	if err := c.connectLocked(ctx); err != nil {
		return nil, err
	}

	return c.resolver, nil
}

// Ping verifies reachability; the recovery coordinator uses it as the
// store probe.
func (c *Connection) Ping(ctx context.Context) error {
	db, err := c.DB(ctx)
	if err != nil {
		return err
	}

	return db.PingContext(ctx)
}

// Close releases the connection pools.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closeLocked()
}

func (c *Connection) closeLocked() error {
	if c.resolver == nil {
		return nil
	}

	err := c.resolver.Close()
	c.resolver = nil
	c.connected = false

	return err
}

// IsConnected reports whether the resolver is initialized.
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.connected
}

func (c *Connection) migrate(primary *sql.DB) error {
	if !dbNamePattern.MatchString(c.DatabaseName) {
		return fmt.Errorf("invalid database name: %q", c.DatabaseName)
	}

	migrationsPath, err := c.migrationsPath()
	if err != nil {
		c.Logger.Errorf("failed to resolve migrations path: %v", err)
		return err
	}

	sourceURL, err := url.Parse(filepath.ToSlash(migrationsPath))
	if err != nil {
		return fmt.Errorf("failed to parse migrations url: %w", err)
	}

	sourceURL.Scheme = "file"

	driver, err := postgres.WithInstance(primary, &postgres.Config{
		DatabaseName: c.DatabaseName,
		SchemaName:   "public",
	})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver instance: %w", err)
	}

	migrator, err := migrate.NewWithDatabaseInstance(sourceURL.String(), c.DatabaseName, driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			c.Logger.Info("No new migrations found. Skipping...")
			return nil
		}

		if errors.Is(err, os.ErrNotExist) {
			c.Logger.Warn("No migration files found. Skipping migration step...")
			return nil
		}

		var dirtyErr migrate.ErrDirty
		if errors.As(err, &dirtyErr) {
			return fmt.Errorf("migration failed: dirty database version %d", dirtyErr.Version)
		}

		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// migrationsPath rejects traversal segments (CWE-22).
func (c *Connection) migrationsPath() (string, error) {
	path := c.MigrationsPath
	if path == "" {
		path = "migrations"
	}

	cleaned := filepath.Clean(path)
	for _, part := range strings.Split(cleaned, string(filepath.Separator)) {
		if part == ".." {
			return "", fmt.Errorf("invalid migrations path: %q", path)
		}
	}

	return filepath.Abs(cleaned)
}

func sanitizeSensitiveError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := credentialsPattern.ReplaceAllString(err.Error(), "://***@")

	return passwordPattern.ReplaceAllString(sanitized, "${1}***")
}

package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// migrationLockKey is the advisory lock held while migrations run, so that
// replicas starting together apply each file once.
const migrationLockKey int64 = 0x636d6d73

// Migration is one numbered SQL file, e.g. "002_maintenance.sql".
type Migration struct {
	Version  int
	Name     string
	SQL      string
	Checksum string
}

type MigrationStatus struct {
	Version   int
	Name      string
	Applied   bool
	AppliedAt *time.Time
	// Modified is set when the file changed after it was applied.
	Modified bool
}

type appliedMigration struct {
	Version   int
	Checksum  string
	AppliedAt time.Time
}

// Migrator applies numbered SQL files from a filesystem (the embedded
// migrations package, or os.DirFS for an override directory).
type Migrator struct {
	pool *pgxpool.Pool
	fsys fs.FS
}

func NewMigrator(pool *pgxpool.Pool, fsys fs.FS) *Migrator {
	return &Migrator{pool: pool, fsys: fsys}
}

// LoadMigrations reads the .sql files at the root of the filesystem in
// version order. Files without a numeric prefix are ignored.
func (m *Migrator) LoadMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(m.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var out []Migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		version, ok := versionOf(name)
		if !ok {
			continue
		}
		content, err := fs.ReadFile(m.fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		sum := sha256.Sum256(content)
		out = append(out, Migration{
			Version:  version,
			Name:     name,
			SQL:      string(content),
			Checksum: hex.EncodeToString(sum[:]),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	for i := 1; i < len(out); i++ {
		if out[i].Version == out[i-1].Version {
			return nil, fmt.Errorf("duplicate migration version %d: %s and %s",
				out[i].Version, out[i-1].Name, out[i].Name)
		}
	}
	return out, nil
}

func versionOf(name string) (int, bool) {
	prefix, _, found := strings.Cut(name, "_")
	if !found {
		return 0, false
	}
	v, err := strconv.Atoi(prefix)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func ensureMigrationsTable(ctx context.Context, q Querier, schema string) error {
	_, err := q.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       VARCHAR(255) NOT NULL,
		checksum   CHAR(64) NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`, pgx.Identifier{schema}.Sanitize()))
	if err != nil {
		return fmt.Errorf("create schema_migrations in %s: %w", schema, err)
	}
	return nil
}

func appliedMigrations(ctx context.Context, q Querier, schema string) (map[int]appliedMigration, error) {
	rows, err := q.Query(ctx, fmt.Sprintf(`SELECT version, checksum, applied_at FROM %s.schema_migrations`,
		pgx.Identifier{schema}.Sanitize()))
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations in %s: %w", schema, err)
	}
	list, err := pgx.CollectRows(rows, pgx.RowToStructByPos[appliedMigration])
	if err != nil {
		return nil, fmt.Errorf("scan schema_migrations: %w", err)
	}
	out := make(map[int]appliedMigration, len(list))
	for _, a := range list {
		out[a.Version] = a
	}
	return out, nil
}

// planMigrations returns the files still to apply. It refuses to proceed when
// an applied file has been edited since.
func planMigrations(all []Migration, applied map[int]appliedMigration) ([]Migration, error) {
	var pending []Migration
	for _, mig := range all {
		a, ok := applied[mig.Version]
		if !ok {
			pending = append(pending, mig)
			continue
		}
		if a.Checksum != mig.Checksum {
			return nil, fmt.Errorf("migration %s was modified after it was applied", mig.Name)
		}
	}
	return pending, nil
}

func statusOf(all []Migration, applied map[int]appliedMigration) []MigrationStatus {
	out := make([]MigrationStatus, 0, len(all))
	for _, mig := range all {
		s := MigrationStatus{Version: mig.Version, Name: mig.Name}
		if a, ok := applied[mig.Version]; ok {
			at := a.AppliedAt
			s.Applied = true
			s.AppliedAt = &at
			s.Modified = a.Checksum != mig.Checksum
		}
		out = append(out, s)
	}
	return out
}

// Up applies every pending migration to schema, each in its own transaction,
// while holding the migration advisory lock. It returns how many ran.
func (m *Migrator) Up(ctx context.Context, schema string) (int, error) {
	all, err := m.LoadMigrations()
	if err != nil {
		return 0, err
	}

	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, migrationLockKey); err != nil {
		return 0, fmt.Errorf("take migration lock: %w", err)
	}
	defer conn.Exec(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, migrationLockKey)

	if err := ensureMigrationsTable(ctx, conn, schema); err != nil {
		return 0, err
	}
	applied, err := appliedMigrations(ctx, conn, schema)
	if err != nil {
		return 0, err
	}
	pending, err := planMigrations(all, applied)
	if err != nil {
		return 0, err
	}

	for i, mig := range pending {
		if err := applyMigration(ctx, conn, schema, mig); err != nil {
			return i, fmt.Errorf("apply %s: %w", mig.Name, err)
		}
	}
	return len(pending), nil
}

func applyMigration(ctx context.Context, conn *pgxpool.Conn, schema string, mig Migration) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(context.WithoutCancel(ctx))

	ident := pgx.Identifier{schema}.Sanitize()
	if _, err := tx.Exec(ctx, "SET LOCAL search_path TO "+ident); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}
	if _, err := tx.Exec(ctx, mig.SQL); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s.schema_migrations (version, name, checksum) VALUES ($1, $2, $3)`, ident),
		mig.Version, mig.Name, mig.Checksum,
	); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit(ctx)
}

// Status lists every known migration with whether and when it was applied.
func (m *Migrator) Status(ctx context.Context, schema string) ([]MigrationStatus, error) {
	all, err := m.LoadMigrations()
	if err != nil {
		return nil, err
	}
	if err := ensureMigrationsTable(ctx, m.pool, schema); err != nil {
		return nil, err
	}
	applied, err := appliedMigrations(ctx, m.pool, schema)
	if err != nil {
		return nil, err
	}
	return statusOf(all, applied), nil
}

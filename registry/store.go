package registry

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store mirrors registry mutations into a local SQLite database so a
// daemon restart can reconcile its in-memory registry against durable
// state plus the live /proc table instead of starting blind, per
// SPEC_FULL.md §4.B.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if necessary) a SQLite database at path and
// applies any pending migrations embedded in this package.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("registry: open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers anyway; avoid SQLITE_BUSY churn

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: migrate: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		db.Close()
		return nil, fmt.Errorf("registry: migrate up: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert mirrors a registry.Add into the containers table.
func (s *Store) Insert(c Container) error {
	_, err := s.db.Exec(
		`INSERT INTO containers (id, name, pid, aux_pid, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.PID, c.AuxPID, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("registry: insert %s: %w", c.ID, err)
	}
	return nil
}

// Delete mirrors a registry.Remove into the containers table.
func (s *Store) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM containers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("registry: delete %s: %w", id, err)
	}
	return nil
}

// Reconcile loads every persisted container, drops rows whose pid no
// longer exists under /proc (via alive), and returns the survivors so the
// caller can seed a fresh in-memory Registry. This makes restart-after-
// crash converge to the same invariant the reaper maintains continuously.
func (s *Store) Reconcile(alive func(pid int) bool) ([]Container, error) {
	rows, err := s.db.Query(`SELECT id, name, pid, aux_pid, created_at FROM containers`)
	if err != nil {
		return nil, fmt.Errorf("registry: reconcile query: %w", err)
	}
	defer rows.Close()

	var all []Container
	for rows.Next() {
		var c Container
		if err := rows.Scan(&c.ID, &c.Name, &c.PID, &c.AuxPID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("registry: reconcile scan: %w", err)
		}
		all = append(all, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("registry: reconcile rows: %w", err)
	}

	survivors := make([]Container, 0, len(all))
	for _, c := range all {
		if alive(c.PID) {
			survivors = append(survivors, c)
			continue
		}
		slog.Info("registry: dropping stale row on reconcile", "id", c.ID, "pid", c.PID)
		if err := s.Delete(c.ID); err != nil {
			slog.Warn("registry: failed to drop stale row", "id", c.ID, "error", err)
		}
	}
	return survivors, nil
}

// ProcAlive reports whether /proc/<pid> exists, the same test the reaper
// uses to detect dead children.
func ProcAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.Stat(fmt.Sprintf("/proc/%d", pid))
	return err == nil
}

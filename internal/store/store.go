// Package store is the embedded SQL persistence layer: cache rows,
// blacklist rows, and the audit log, over a pooled SQLite connection.
package store

import (
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite" // pure-Go driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite connection pool with the operations C4 defines.
type Store struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// Open opens or creates the database at path, applying migrations and
// configuring a 4-connection WAL pool.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(4)
	conn.SetConnMaxLifetime(time.Hour)

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}
	dbDriver, err := sqlite.WithInstance(s.conn, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.conn.Close()
}

// normalize trims and lowercases a name before it is stored or matched.
// internal/resolver already passes values folded by dnsreply.Normalize,
// for which this is a no-op; it guarantees the same stored form for
// values that reach the store by any other route.
func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// GetDNSAnswer returns the serialized answer of any live row for
// (host, family) — expired >= now — or ("", false) on miss.
func (s *Store) GetDNSAnswer(host string, family int) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var answer string
	row := s.conn.QueryRow(
		`SELECT answer FROM dns_reply WHERE dns_name = ? AND dns_family = ? AND expired >= strftime('%s','now') LIMIT 1`,
		normalize(host), family,
	)
	if err := row.Scan(&answer); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("querying cached answer for %s: %w", host, err)
	}
	return answer, true, nil
}

// CreateDNSAnswer inserts a cache row. expiration is the absolute Unix
// second the row stops being live, computed by the caller from either
// the configured custom TTL or the reply's own expiration.
func (s *Store) CreateDNSAnswer(host string, family int, answerJSON string, expiration int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(
		`INSERT INTO dns_reply (dns_name, dns_family, answer, expired) VALUES (?, ?, ?, ?)`,
		normalize(host), family, answerJSON, expiration,
	)
	if err != nil {
		return fmt.Errorf("inserting cached answer for %s: %w", host, err)
	}
	return nil
}

// IsHostBlocked reports whether host has a matching blacklist row.
func (s *Store) IsHostBlocked(host string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var id int64
	row := s.conn.QueryRow(`SELECT id FROM blacklist_hosts WHERE dns_name = ? LIMIT 1`, normalize(host))
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("querying blacklist for %s: %w", host, err)
	}
	return true, nil
}

// CreateHostBlocked inserts a blacklist row, reporting whether one was
// actually inserted (false if host was already blocked).
func (s *Store) CreateHostBlocked(host string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blocked, err := s.isHostBlockedLocked(host)
	if err != nil {
		return false, err
	}
	if blocked {
		return false, nil
	}
	_, err = s.conn.Exec(`INSERT INTO blacklist_hosts (dns_name) VALUES (?)`, normalize(host))
	if err != nil {
		return false, fmt.Errorf("inserting blacklist row for %s: %w", host, err)
	}
	return true, nil
}

func (s *Store) isHostBlockedLocked(host string) (bool, error) {
	var id int64
	row := s.conn.QueryRow(`SELECT id FROM blacklist_hosts WHERE dns_name = ? LIMIT 1`, normalize(host))
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("querying blacklist for %s: %w", host, err)
	}
	return true, nil
}

// DeleteHostBlocked removes a blacklist row by exact match, reporting
// whether a row was actually removed.
func (s *Store) DeleteHostBlocked(host string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.conn.Exec(`DELETE FROM blacklist_hosts WHERE dns_name = ?`, normalize(host))
	if err != nil {
		return false, fmt.Errorf("deleting blacklist row for %s: %w", host, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting affected rows for %s: %w", host, err)
	}
	return rows > 0, nil
}

// CreateDNSAudit appends an audit row. Both processName and host are
// lowercased prior to insert.
func (s *Store) CreateDNSAudit(processName, host string, family int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(
		`INSERT INTO audit_dns_query (process_name, dns_name, dns_family) VALUES (?, ?, ?)`,
		normalize(processName), normalize(host), family,
	)
	if err != nil {
		return fmt.Errorf("inserting audit row for %s: %w", host, err)
	}
	return nil
}

// AuditRow is one row of a paged audit query.
type AuditRow struct {
	ProcessName string
	DNSName     string
	DNSFamily   int
	Created     int64
}

const auditPageSize = 10

// GetDNSAudit returns page*10..page*10+9 audit rows ordered by id
// descending.
func (s *Store) GetDNSAudit(page uint64) ([]AuditRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.Query(
		`SELECT process_name, dns_name, dns_family, created FROM audit_dns_query ORDER BY id DESC LIMIT ? OFFSET ?`,
		auditPageSize, page*auditPageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit page %d: %w", page, err)
	}
	defer rows.Close()

	var out []AuditRow
	for rows.Next() {
		var r AuditRow
		if err := rows.Scan(&r.ProcessName, &r.DNSName, &r.DNSFamily, &r.Created); err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit page %d: %w", page, err)
	}
	return out, nil
}

// CacheCount and BlacklistCount back the diagnostics surface; they are
// not part of the core operations in spec.md §4.4.

func (s *Store) CacheCount() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM dns_reply WHERE expired >= strftime('%s','now')`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting live cache rows: %w", err)
	}
	return n, nil
}

func (s *Store) BlacklistCount() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM blacklist_hosts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting blacklist rows: %w", err)
	}
	return n, nil
}

func (s *Store) AuditCount() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM audit_dns_query`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting audit rows: %w", err)
	}
	return n, nil
}

// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package store handles persistence of DNS query logs, whitelist and
// blacklist entries, and blocklist sources in a shared SQLite
// database. Each ingestor holds its own connection; writers use
// per-statement auto-commit and touch disjoint vlan_id subsets.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"grimm.is/dnswarden/internal/errors"
	"grimm.is/dnswarden/internal/install"
)

// Store wraps the shared database.
type Store struct {
	db *sql.DB
}

// DBPath returns the database file path for a database name.
func DBPath(name string) string {
	return filepath.Join(install.GetStateDir(), name+".db")
}

// Open opens (creating if necessary) the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, errors.KindInternal, "failed to create database directory %s", dir)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "failed to open database")
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// tableSpec describes the required shape of one table.
type tableSpec struct {
	name      string
	createSQL string
	indexSQL  []string
	columns   []string
	indexes   []string
	pkColumns []string
}

var requiredTables = []tableSpec{
	{
		name: "dns_queries",
		createSQL: `CREATE TABLE dns_queries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts DATETIME NOT NULL,
			client_ip VARCHAR(45),
			domain VARCHAR(255),
			query_type VARCHAR(20) DEFAULT 'unknown',
			status VARCHAR(20),
			vlan_id INTEGER NOT NULL DEFAULT 0
		)`,
		indexSQL: []string{
			`CREATE INDEX idx_ts ON dns_queries(ts)`,
			`CREATE INDEX idx_domain ON dns_queries(domain)`,
			`CREATE INDEX idx_client_ip ON dns_queries(client_ip)`,
			`CREATE INDEX idx_vlan_id ON dns_queries(vlan_id)`,
			`CREATE INDEX idx_ts_domain ON dns_queries(ts, domain)`,
			`CREATE INDEX idx_ts_client ON dns_queries(ts, client_ip)`,
			`CREATE INDEX idx_ts_vlan ON dns_queries(ts, vlan_id)`,
		},
		columns: []string{"id", "ts", "client_ip", "domain", "query_type", "status", "vlan_id"},
		indexes: []string{"idx_ts", "idx_domain", "idx_client_ip", "idx_vlan_id",
			"idx_ts_domain", "idx_ts_client", "idx_ts_vlan"},
	},
	{
		name: "whitelist",
		createSQL: `CREATE TABLE whitelist (
			domain VARCHAR(255) NOT NULL,
			vlan_id INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (domain, vlan_id)
		)`,
		columns:   []string{"domain", "vlan_id"},
		pkColumns: []string{"domain", "vlan_id"},
	},
	{
		name: "blacklist",
		createSQL: `CREATE TABLE blacklist (
			domain VARCHAR(255) NOT NULL,
			vlan_id INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (domain, vlan_id)
		)`,
		columns:   []string{"domain", "vlan_id"},
		pkColumns: []string{"domain", "vlan_id"},
	},
	{
		name: "blocklists",
		createSQL: `CREATE TABLE blocklists (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name VARCHAR(255) NOT NULL,
			url VARCHAR(2048) NOT NULL,
			vlan_id INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		indexSQL: []string{
			`CREATE UNIQUE INDEX idx_name_vlan ON blocklists(name, vlan_id)`,
		},
		columns: []string{"id", "name", "url", "vlan_id", "created_at", "updated_at"},
		indexes: []string{"idx_name_vlan"},
	},
}

// EnsureSchema checks each required table against its expected shape
// and drops and recreates any table missing a column or index. The
// query log is a rolling log and the list tables are externally
// managed, so recreation is acceptable.
func (s *Store) EnsureSchema() error {
	for _, spec := range requiredTables {
		ok, err := s.tableMatches(spec)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if _, err := s.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", spec.name)); err != nil {
			return errors.Wrapf(err, errors.KindUnavailable, "failed to drop table %s", spec.name)
		}
		if _, err := s.db.Exec(spec.createSQL); err != nil {
			return errors.Wrapf(err, errors.KindUnavailable, "failed to create table %s", spec.name)
		}
		for _, idx := range spec.indexSQL {
			if _, err := s.db.Exec(idx); err != nil {
				return errors.Wrapf(err, errors.KindUnavailable, "failed to create index on %s", spec.name)
			}
		}
	}
	return nil
}

// tableMatches reports whether the table exists with every required
// column, index, and primary-key column.
func (s *Store) tableMatches(spec tableSpec) (bool, error) {
	var name string
	err := s.db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, spec.name).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, errors.KindUnavailable, "failed to introspect %s", spec.name)
	}

	columns := make(map[string]bool)
	pk := make(map[string]bool)
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", spec.name))
	if err != nil {
		return false, errors.Wrapf(err, errors.KindUnavailable, "failed to read columns of %s", spec.name)
	}
	for rows.Next() {
		var (
			cid     int
			col     string
			ctype   string
			notnull int
			dflt    sql.NullString
			pkPos   int
		)
		if err := rows.Scan(&cid, &col, &ctype, &notnull, &dflt, &pkPos); err != nil {
			rows.Close()
			return false, errors.Wrapf(err, errors.KindUnavailable, "failed to scan columns of %s", spec.name)
		}
		columns[col] = true
		if pkPos > 0 {
			pk[col] = true
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, errors.Wrapf(err, errors.KindUnavailable, "failed to read columns of %s", spec.name)
	}

	for _, col := range spec.columns {
		if !columns[col] {
			return false, nil
		}
	}
	for _, col := range spec.pkColumns {
		if !pk[col] {
			return false, nil
		}
	}

	if len(spec.indexes) > 0 {
		indexes := make(map[string]bool)
		rows, err := s.db.Query(fmt.Sprintf("PRAGMA index_list(%s)", spec.name))
		if err != nil {
			return false, errors.Wrapf(err, errors.KindUnavailable, "failed to read indexes of %s", spec.name)
		}
		for rows.Next() {
			var (
				seq     int
				idxName string
				unique  int
				origin  string
				partial int
			)
			if err := rows.Scan(&seq, &idxName, &unique, &origin, &partial); err != nil {
				rows.Close()
				return false, errors.Wrapf(err, errors.KindUnavailable, "failed to scan indexes of %s", spec.name)
			}
			indexes[idxName] = true
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return false, errors.Wrapf(err, errors.KindUnavailable, "failed to read indexes of %s", spec.name)
		}
		for _, idx := range spec.indexes {
			if !indexes[idx] {
				return false, nil
			}
		}
	}

	return true, nil
}

// tsFormat is how query timestamps are stored (UTC, second precision).
const tsFormat = "2006-01-02 15:04:05"

// InsertQuery persists one query event and returns its row id.
func (s *Store) InsertQuery(e QueryEvent) (int64, error) {
	qtype := e.QueryType
	if qtype == "" {
		qtype = "unknown"
	}
	res, err := s.db.Exec(
		`INSERT INTO dns_queries (ts, client_ip, domain, query_type, status, vlan_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Timestamp.UTC().Format(tsFormat), e.ClientIP, e.Domain, qtype, e.Status, e.VLANID,
	)
	if err != nil {
		return 0, errors.Wrap(err, errors.KindUnavailable, "failed to insert query")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, errors.KindUnavailable, "failed to read insert id")
	}
	return id, nil
}

// UpdateQueryStatus changes the status of an already-inserted row.
// Used when a blocked log line arrives for a query already recorded
// as allowed.
func (s *Store) UpdateQueryStatus(id int64, status string) error {
	_, err := s.db.Exec(`UPDATE dns_queries SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return errors.Wrapf(err, errors.KindUnavailable, "failed to update query %d", id)
	}
	return nil
}

// LoadWhitelist returns the whitelist for a VLAN. Entries with
// vlan_id 0 apply to every VLAN in addition to the VLAN's own rows.
// Domains are returned as stored; callers normalise case and dots.
func (s *Store) LoadWhitelist(vlanID int) (map[string]struct{}, error) {
	rows, err := s.db.Query(
		`SELECT domain FROM whitelist WHERE vlan_id IN (0, ?)`, vlanID)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "failed to load whitelist")
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var domain string
		if err := rows.Scan(&domain); err != nil {
			return nil, errors.Wrap(err, errors.KindUnavailable, "failed to scan whitelist")
		}
		set[domain] = struct{}{}
	}
	return set, rows.Err()
}

// LoadBlocklistSources returns the blocklist sources registered for
// exactly the given VLAN.
func (s *Store) LoadBlocklistSources(vlanID int) ([]Source, error) {
	rows, err := s.db.Query(
		`SELECT id, name, url, vlan_id FROM blocklists WHERE vlan_id = ? ORDER BY name`, vlanID)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "failed to load blocklist sources")
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var src Source
		if err := rows.Scan(&src.ID, &src.Name, &src.URL, &src.VLANID); err != nil {
			return nil, errors.Wrap(err, errors.KindUnavailable, "failed to scan blocklist source")
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// AddWhitelistEntry inserts a whitelist row, ignoring duplicates.
// The list tables are normally managed by the external CLI tools;
// this is used by tooling and tests.
func (s *Store) AddWhitelistEntry(domain string, vlanID int) error {
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO whitelist (domain, vlan_id) VALUES (?, ?)`, domain, vlanID)
	if err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "failed to insert whitelist entry")
	}
	return nil
}

// AddBlocklistSource registers or updates a blocklist source.
func (s *Store) AddBlocklistSource(name, url string, vlanID int) error {
	_, err := s.db.Exec(
		`INSERT INTO blocklists (name, url, vlan_id) VALUES (?, ?, ?)
		 ON CONFLICT(name, vlan_id) DO UPDATE SET url = excluded.url, updated_at = CURRENT_TIMESTAMP`,
		name, url, vlanID)
	if err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "failed to upsert blocklist source")
	}
	return nil
}

// CountQueries returns the number of query rows for a VLAN, with -1
// meaning all VLANs. Used by tests.
func (s *Store) CountQueries(vlanID int) (int64, error) {
	var (
		n   int64
		err error
	)
	if vlanID < 0 {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM dns_queries`).Scan(&n)
	} else {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM dns_queries WHERE vlan_id = ?`, vlanID).Scan(&n)
	}
	if err != nil {
		return 0, errors.Wrap(err, errors.KindUnavailable, "failed to count queries")
	}
	return n, nil
}

// GetQuery fetches one query row by id. Used by tests and tooling.
func (s *Store) GetQuery(id int64) (QueryEvent, error) {
	var (
		e  QueryEvent
		ts string
	)
	err := s.db.QueryRow(
		`SELECT ts, client_ip, domain, query_type, status, vlan_id FROM dns_queries WHERE id = ?`, id).
		Scan(&ts, &e.ClientIP, &e.Domain, &e.QueryType, &e.Status, &e.VLANID)
	if err != nil {
		return e, errors.Wrapf(err, errors.KindNotFound, "query %d not found", id)
	}
	e.Timestamp, err = time.ParseInLocation(tsFormat, ts, time.UTC)
	if err != nil {
		return e, errors.Wrapf(err, errors.KindInternal, "bad timestamp on query %d", id)
	}
	return e, nil
}

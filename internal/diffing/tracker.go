package diffing

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Version is one tracked release.
type Version struct {
	ID            int64     `json:"id"`
	VersionString string    `json:"version_string"`
	Major         int       `json:"major"`
	Minor         int       `json:"minor"`
	Patch         int       `json:"patch"`
	PreRelease    string    `json:"pre_release,omitempty"`
	BuildMetadata string    `json:"build_metadata,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	SnapshotFile  string    `json:"snapshot_file,omitempty"`
	IsCurrent     bool      `json:"is_current"`
	Notes         string    `json:"notes,omitempty"`
}

// Deprecation is one tracked deprecated element.
type Deprecation struct {
	Element      string `json:"element"`
	SinceVersion string `json:"since_version"`
	RemovalIn    string `json:"removal_in,omitempty"`
	Replacement  string `json:"replacement,omitempty"`
	Note         string `json:"note,omitempty"`
}

// TrackerStats summarizes the tracked history.
type TrackerStats struct {
	TotalVersions  int    `json:"total_versions"`
	TotalChanges   int    `json:"total_changes"`
	Deprecations   int    `json:"deprecations"`
	CurrentVersion string `json:"current_version,omitempty"`
}

// Tracker records versions, their classified changes, and deprecations in
// SQLite.
type Tracker struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
	logger *zap.Logger
}

const trackerSchema = `
CREATE TABLE IF NOT EXISTS versions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	version_string TEXT NOT NULL UNIQUE,
	major INTEGER NOT NULL,
	minor INTEGER NOT NULL,
	patch INTEGER NOT NULL,
	pre_release TEXT NOT NULL DEFAULT '',
	build_metadata TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	snapshot_file TEXT NOT NULL DEFAULT '',
	is_current INTEGER NOT NULL DEFAULT 0,
	notes TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS version_changes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	version_id INTEGER NOT NULL REFERENCES versions(id),
	element TEXT NOT NULL,
	change_type TEXT NOT NULL,
	severity TEXT NOT NULL,
	impact TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	migration_note TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS deprecations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	element TEXT NOT NULL UNIQUE,
	since_version TEXT NOT NULL,
	removal_in TEXT NOT NULL DEFAULT '',
	replacement TEXT NOT NULL DEFAULT '',
	note TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_versions_string ON versions(version_string);
CREATE INDEX IF NOT EXISTS idx_versions_current ON versions(is_current);
CREATE INDEX IF NOT EXISTS idx_changes_version ON version_changes(version_id);
`

// NewTracker opens (creating if needed) the tracking database at dbPath.
func NewTracker(dbPath string, logger *zap.Logger) (*Tracker, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create tracker dir: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open tracker db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping tracker db: %w", err)
	}
	if _, err := db.Exec(trackerSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize tracker schema: %w", err)
	}
	return &Tracker{db: db, dbPath: dbPath, logger: logger}, nil
}

// Close releases the database handle.
func (t *Tracker) Close() error {
	return t.db.Close()
}

// RegisterVersion stores a version, marks it current, and records its
// classified changes. Re-registering a version string is an error.
func (t *Tracker) RegisterVersion(versionString, snapshotFile, notes string, changes []Change) (Version, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v := parseVersion(versionString)
	v.SnapshotFile = snapshotFile
	v.Notes = notes
	v.CreatedAt = time.Now().UTC()
	v.IsCurrent = true

	tx, err := t.db.Begin()
	if err != nil {
		return Version{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE versions SET is_current = 0 WHERE is_current = 1`); err != nil {
		return Version{}, fmt.Errorf("clear current version: %w", err)
	}
	res, err := tx.Exec(`
		INSERT INTO versions
			(version_string, major, minor, patch, pre_release, build_metadata,
			 created_at, snapshot_file, is_current, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		v.VersionString, v.Major, v.Minor, v.Patch, v.PreRelease,
		v.BuildMetadata, v.CreatedAt, v.SnapshotFile, v.Notes)
	if err != nil {
		return Version{}, fmt.Errorf("insert version %s: %w", versionString, err)
	}
	v.ID, _ = res.LastInsertId()

	for _, c := range changes {
		if _, err := tx.Exec(`
			INSERT INTO version_changes
				(version_id, element, change_type, severity, impact, detail, migration_note)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			v.ID, c.Element, string(c.Type), string(c.Severity),
			string(c.Impact), c.Detail, c.MigrationNote); err != nil {
			return Version{}, fmt.Errorf("insert change for %s: %w", c.Element, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Version{}, fmt.Errorf("commit: %w", err)
	}

	t.logger.Info("registered version",
		zap.String("version", versionString),
		zap.Int("changes", len(changes)))
	return v, nil
}

// CurrentVersion returns the version marked current, or ok=false.
func (t *Tracker) CurrentVersion() (Version, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	row := t.db.QueryRow(`
		SELECT id, version_string, major, minor, patch, pre_release,
		       build_metadata, created_at, snapshot_file, is_current, notes
		FROM versions WHERE is_current = 1`)
	v, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return Version{}, false, nil
	}
	if err != nil {
		return Version{}, false, err
	}
	return v, true, nil
}

// GetVersion looks up one version string.
func (t *Tracker) GetVersion(versionString string) (Version, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	row := t.db.QueryRow(`
		SELECT id, version_string, major, minor, patch, pre_release,
		       build_metadata, created_at, snapshot_file, is_current, notes
		FROM versions WHERE version_string = ?`, versionString)
	v, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return Version{}, false, nil
	}
	if err != nil {
		return Version{}, false, err
	}
	return v, true, nil
}

// ListVersions returns every version, newest semver first.
func (t *Tracker) ListVersions() ([]Version, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rows, err := t.db.Query(`
		SELECT id, version_string, major, minor, patch, pre_release,
		       build_metadata, created_at, snapshot_file, is_current, notes
		FROM versions
		ORDER BY major DESC, minor DESC, patch DESC,
		         pre_release = '' DESC, pre_release DESC`)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// RecordDeprecation upserts a deprecation entry.
func (t *Tracker) RecordDeprecation(d Deprecation) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, err := t.db.Exec(`
		INSERT INTO deprecations (element, since_version, removal_in, replacement, note)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(element) DO UPDATE SET
			since_version = excluded.since_version,
			removal_in = excluded.removal_in,
			replacement = excluded.replacement,
			note = excluded.note`,
		d.Element, d.SinceVersion, d.RemovalIn, d.Replacement, d.Note)
	if err != nil {
		return fmt.Errorf("record deprecation %s: %w", d.Element, err)
	}
	return nil
}

// ListDeprecations returns all tracked deprecations sorted by element.
func (t *Tracker) ListDeprecations() ([]Deprecation, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rows, err := t.db.Query(`
		SELECT element, since_version, removal_in, replacement, note
		FROM deprecations ORDER BY element`)
	if err != nil {
		return nil, fmt.Errorf("list deprecations: %w", err)
	}
	defer rows.Close()

	var out []Deprecation
	for rows.Next() {
		var d Deprecation
		if err := rows.Scan(&d.Element, &d.SinceVersion, &d.RemovalIn, &d.Replacement, &d.Note); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Stats summarizes the database.
func (t *Tracker) Stats() (TrackerStats, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var s TrackerStats
	if err := t.db.QueryRow(`SELECT COUNT(*) FROM versions`).Scan(&s.TotalVersions); err != nil {
		return s, err
	}
	if err := t.db.QueryRow(`SELECT COUNT(*) FROM version_changes`).Scan(&s.TotalChanges); err != nil {
		return s, err
	}
	if err := t.db.QueryRow(`SELECT COUNT(*) FROM deprecations`).Scan(&s.Deprecations); err != nil {
		return s, err
	}
	row := t.db.QueryRow(`SELECT version_string FROM versions WHERE is_current = 1`)
	if err := row.Scan(&s.CurrentVersion); err != nil && err != sql.ErrNoRows {
		return s, err
	}
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner) (Version, error) {
	var v Version
	var current int
	err := row.Scan(&v.ID, &v.VersionString, &v.Major, &v.Minor, &v.Patch,
		&v.PreRelease, &v.BuildMetadata, &v.CreatedAt, &v.SnapshotFile,
		&current, &v.Notes)
	v.IsCurrent = current != 0
	return v, err
}

var semverRe = regexp.MustCompile(
	`^v?(\d+)\.(\d+)\.(\d+)(?:-([0-9A-Za-z.-]+))?(?:\+([0-9A-Za-z.-]+))?$`)

// parseVersion parses a semver string. Non-semver strings keep the raw value
// with zeroed components so they still sort deterministically.
func parseVersion(s string) Version {
	v := Version{VersionString: s}
	m := semverRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return v
	}
	v.Major, _ = strconv.Atoi(m[1])
	v.Minor, _ = strconv.Atoi(m[2])
	v.Patch, _ = strconv.Atoi(m[3])
	v.PreRelease = m[4]
	v.BuildMetadata = m[5]
	return v
}

// CompareVersionStrings orders two version strings: -1, 0, or 1. A release
// outranks its own pre-releases.
func CompareVersionStrings(a, b string) int {
	va, vb := parseVersion(a), parseVersion(b)
	for _, pair := range [][2]int{
		{va.Major, vb.Major}, {va.Minor, vb.Minor}, {va.Patch, vb.Patch},
	} {
		if pair[0] != pair[1] {
			if pair[0] < pair[1] {
				return -1
			}
			return 1
		}
	}
	switch {
	case va.PreRelease == vb.PreRelease:
		return 0
	case va.PreRelease == "":
		return 1
	case vb.PreRelease == "":
		return -1
	case va.PreRelease < vb.PreRelease:
		return -1
	default:
		return 1
	}
}

// NextVersion computes the next version string for a bump kind: major,
// minor, patch, or prerelease.
func NextVersion(current, bump string) (string, error) {
	v := parseVersion(current)
	switch bump {
	case "major":
		return fmt.Sprintf("%d.0.0", v.Major+1), nil
	case "minor":
		return fmt.Sprintf("%d.%d.0", v.Major, v.Minor+1), nil
	case "patch":
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch+1), nil
	case "prerelease":
		if v.PreRelease == "" {
			return fmt.Sprintf("%d.%d.%d-alpha.1", v.Major, v.Minor, v.Patch+1), nil
		}
		base, n := splitPreRelease(v.PreRelease)
		return fmt.Sprintf("%d.%d.%d-%s.%d", v.Major, v.Minor, v.Patch, base, n+1), nil
	default:
		return "", fmt.Errorf("unknown bump kind %q", bump)
	}
}

func splitPreRelease(pre string) (string, int) {
	idx := strings.LastIndex(pre, ".")
	if idx < 0 {
		return pre, 0
	}
	n, err := strconv.Atoi(pre[idx+1:])
	if err != nil {
		return pre, 0
	}
	return pre[:idx], n
}

package storage

import (
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding transcriptions, summaries, sessions,
// and API keys.
type Store struct {
	db *sql.DB

	// ownerMu serializes session upserts per owner so concurrent writes for
	// the same logical session converge to a single row.
	mu      sync.Mutex
	ownerMu map[string]*sync.Mutex
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "minuted.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db, ownerMu: make(map[string]*sync.Mutex)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Text records ---

const (
	kindTranscription = "transcriptions"
	kindSummary       = "summaries"
)

func (s *Store) saveRecord(table string, rec TextRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO `+table+` (id, owner_id, text, created_at, duration_ms) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.OwnerID, rec.Text, rec.CreatedAt.UTC().Format(time.RFC3339), rec.DurationMs,
	)
	return err
}

func (s *Store) getRecord(table, id, ownerID string) (TextRecord, error) {
	var rec TextRecord
	var createdAt string
	err := s.db.QueryRow(
		`SELECT id, owner_id, text, created_at, duration_ms FROM `+table+` WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	).Scan(&rec.ID, &rec.OwnerID, &rec.Text, &createdAt, &rec.DurationMs)
	if err == sql.ErrNoRows {
		return TextRecord{}, ErrNotFound
	}
	if err != nil {
		return TextRecord{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return TextRecord{}, fmt.Errorf("parsing created_at: %w", err)
	}
	rec.CreatedAt = t
	return rec, nil
}

// SaveTranscription persists a finished transcription result. Records are
// written once, never updated.
func (s *Store) SaveTranscription(rec TextRecord) error {
	return s.saveRecord(kindTranscription, rec)
}

// GetTranscription returns the owner's transcription with the given id.
func (s *Store) GetTranscription(id, ownerID string) (TextRecord, error) {
	return s.getRecord(kindTranscription, id, ownerID)
}

// SaveSummary persists a finished summary result.
func (s *Store) SaveSummary(rec TextRecord) error {
	return s.saveRecord(kindSummary, rec)
}

// GetSummary returns the owner's summary with the given id.
func (s *Store) GetSummary(id, ownerID string) (TextRecord, error) {
	return s.getRecord(kindSummary, id, ownerID)
}

// --- API keys ---

// CreateAPIKey stores a bearer token for the given owner. Only the token's
// SHA-256 is persisted; the raw token exists nowhere but in the caller's
// hands.
func (s *Store) CreateAPIKey(token, ownerID string) error {
	_, err := s.db.Exec(
		`INSERT INTO api_keys (token, owner_id, created_at) VALUES (?, ?, ?)`,
		hashToken(token), ownerID, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// OwnerForAPIKey resolves a bearer token to its owner id.
func (s *Store) OwnerForAPIKey(token string) (string, error) {
	var ownerID string
	err := s.db.QueryRow(`SELECT owner_id FROM api_keys WHERE token = ?`, hashToken(token)).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return ownerID, err
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

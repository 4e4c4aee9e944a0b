// Package transcript archives conversation turns in a local SQLite database
// so the CLI can show history across runs. The archive is a convenience
// cache: the backend's stored history is authoritative, and a purge here
// never needs to round-trip.
package transcript

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kalambet/rxassist/internal/chat"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding archived turns.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the archive database in dataDir and runs pending
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
		dsn = filepath.Join(dataDir, "rxassist.db")
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

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
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

// SaveTurn archives one turn under the given conversation key.
func (s *Store) SaveTurn(conversationID string, turn chat.Turn) error {
	suggestions, err := marshalList(turn.Suggestions)
	if err != nil {
		return fmt.Errorf("marshaling suggestions: %w", err)
	}
	actions, err := marshalActions(turn.FollowUpActions)
	if err != nil {
		return fmt.Errorf("marshaling follow-up actions: %w", err)
	}
	confirmation := ""
	if turn.ConfirmationData != nil {
		b, err := json.Marshal(turn.ConfirmationData)
		if err != nil {
			return fmt.Errorf("marshaling confirmation data: %w", err)
		}
		confirmation = string(b)
	}

	_, err = s.db.Exec(`INSERT INTO turns
		(id, conversation_id, author, content, attachment_id, suggestions,
		 follow_up_actions, requires_confirmation, confirmation_data, is_error,
		 intent, confidence, processing_millis, action_executed, action_result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		turn.ID, conversationID, string(turn.Author), turn.Content, turn.AttachmentID,
		suggestions, actions, boolToInt(turn.RequiresConfirmation), confirmation,
		boolToInt(turn.IsError), turn.Intent, turn.Confidence, turn.ProcessingMillis,
		boolToInt(turn.ActionExecuted), turn.ActionResult,
		turn.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("inserting turn %s: %w", turn.ID, err)
	}
	return nil
}

// ListTurns returns the archived turns for a conversation in append order.
func (s *Store) ListTurns(conversationID string) ([]chat.Turn, error) {
	rows, err := s.db.Query(`SELECT id, author, content, attachment_id, suggestions,
		follow_up_actions, requires_confirmation, confirmation_data, is_error,
		intent, confidence, processing_millis, action_executed, action_result, created_at
		FROM turns WHERE conversation_id = ? ORDER BY created_at, id`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	var turns []chat.Turn
	for rows.Next() {
		var (
			turn                  chat.Turn
			author                string
			suggestions, actions  string
			confirmation          string
			requiresConf, isError int
			actionExecuted        int
			createdAt             string
		)
		if err := rows.Scan(&turn.ID, &author, &turn.Content, &turn.AttachmentID,
			&suggestions, &actions, &requiresConf, &confirmation, &isError,
			&turn.Intent, &turn.Confidence, &turn.ProcessingMillis,
			&actionExecuted, &turn.ActionResult, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turn.Author = chat.Author(author)
		turn.RequiresConfirmation = requiresConf != 0
		turn.IsError = isError != 0
		turn.ActionExecuted = actionExecuted != 0
		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at for %s: %w", turn.ID, err)
		}
		turn.CreatedAt = t
		if err := json.Unmarshal([]byte(suggestions), &turn.Suggestions); err != nil {
			return nil, fmt.Errorf("parsing suggestions for %s: %w", turn.ID, err)
		}
		if err := unmarshalActions(actions, &turn.FollowUpActions); err != nil {
			return nil, fmt.Errorf("parsing follow-up actions for %s: %w", turn.ID, err)
		}
		if confirmation != "" {
			if err := json.Unmarshal([]byte(confirmation), &turn.ConfirmationData); err != nil {
				return nil, fmt.Errorf("parsing confirmation data for %s: %w", turn.ID, err)
			}
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

// Conversations returns the distinct archived conversation keys, most recent
// first.
func (s *Store) Conversations() ([]string, error) {
	rows, err := s.db.Query(`SELECT conversation_id, MAX(created_at) AS last
		FROM turns GROUP BY conversation_id ORDER BY last DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id, last string
		if err := rows.Scan(&id, &last); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PurgeConversation deletes all archived turns for a conversation.
func (s *Store) PurgeConversation(conversationID string) error {
	if _, err := s.db.Exec("DELETE FROM turns WHERE conversation_id = ?", conversationID); err != nil {
		return fmt.Errorf("purging conversation %s: %w", conversationID, err)
	}
	return nil
}

// AppliedMigrations returns the applied schema versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("querying schema_version: %w", err)
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
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

// parseMigrationVersion extracts the numeric prefix from a migration filename
// like "0001_init.sql".
func parseMigrationVersion(name string) (int, error) {
	base := strings.TrimSuffix(name, ".sql")
	idx := strings.Index(base, "_")
	if idx < 0 {
		idx = len(base)
	}
	v, err := strconv.Atoi(base[:idx])
	if err != nil {
		return 0, fmt.Errorf("migration %s has no numeric prefix: %w", name, err)
	}
	return v, nil
}

func marshalList(items []string) (string, error) {
	if items == nil {
		return "[]", nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func marshalActions(actions []chat.ActionProposal) (string, error) {
	if actions == nil {
		return "[]", nil
	}
	b, err := json.Marshal(actions)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalActions(raw string, dst *[]chat.ActionProposal) error {
	if raw == "" || raw == "[]" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

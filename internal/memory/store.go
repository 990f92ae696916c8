// Package memory persists conversation turns in SQLite so chat sessions
// survive restarts.
package memory

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tyemill/snowline-agent/internal/agent"
)

// Store is a SQLite-backed conversation store.
type Store struct {
	db       *sql.DB
	maxTurns int
}

// NewStore opens (creating if needed) the store at dbPath. maxTurns bounds
// how much history is replayed per conversation.
func NewStore(dbPath string, maxTurns int) (*Store, error) {
	if maxTurns <= 0 {
		maxTurns = 100
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, maxTurns: maxTurns}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS turns (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		tool_name TEXT,
		correlation_id TEXT,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns(conversation_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureConversation creates the conversation row if it does not exist.
func (s *Store) EnsureConversation(id string) error {
	now := time.Now()
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO conversations (id, created_at, updated_at)
		VALUES (?, ?, ?)
	`, id, now, now)
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

// AppendTurns stores turns at the end of a conversation in one transaction.
func (s *Store) AppendTurns(conversationID string, turns []agent.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	if err := s.EnsureConversation(conversationID); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	for _, t := range turns {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("turn id: %w", err)
		}
		_, err = tx.Exec(`
			INSERT INTO turns (id, conversation_id, role, content, tool_name, correlation_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id.String(), conversationID, string(t.Role), t.Content, nullable(t.ToolName), nullable(t.CorrelationID), now)
		if err != nil {
			return fmt.Errorf("insert turn: %w", err)
		}
	}

	if _, err := tx.Exec(`UPDATE conversations SET updated_at = ? WHERE id = ?`, now, conversationID); err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	return tx.Commit()
}

// History returns the most recent turns of a conversation in chronological
// order, bounded by the store's turn limit.
func (s *Store) History(conversationID string) ([]agent.Turn, error) {
	rows, err := s.db.Query(`
		SELECT role, content, tool_name, correlation_id
		FROM turns
		WHERE conversation_id = ?
		ORDER BY rowid DESC
		LIMIT ?
	`, conversationID, s.maxTurns)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var reversed []agent.Turn
	for rows.Next() {
		var role, content string
		var toolName, correlationID sql.NullString
		if err := rows.Scan(&role, &content, &toolName, &correlationID); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		reversed = append(reversed, agent.Turn{
			Role:          agent.Role(role),
			Content:       content,
			ToolName:      toolName.String,
			CorrelationID: correlationID.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	turns := make([]agent.Turn, len(reversed))
	for i, t := range reversed {
		turns[len(reversed)-1-i] = t
	}
	return turns, nil
}

// Clear removes a conversation and its turns.
func (s *Store) Clear(conversationID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM turns WHERE conversation_id = ?`, conversationID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM conversations WHERE id = ?`, conversationID); err != nil {
		return err
	}
	return tx.Commit()
}

// Stats reports store counters for the status endpoint.
func (s *Store) Stats() map[string]any {
	var convCount, turnCount int
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&convCount)
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM turns`).Scan(&turnCount)
	return map[string]any{
		"conversations": convCount,
		"turns":         turnCount,
		"max_per_conv":  s.maxTurns,
		"storage":       "sqlite",
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

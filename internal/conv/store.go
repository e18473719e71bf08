// Package conv implements conversation memory: a durable SQLite log of
// (user, agent) exchanges with a bounded in-process cache of recent turns
// per conversation.
package conv

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Turn is one (user message, agent response) exchange. Immutable once recorded.
type Turn struct {
	UserText  string
	AgentText string
	CreatedAt time.Time
}

// Store is the durable conversation log backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the conversation database under statePath.
func Open(statePath string) (*Store, error) {
	dbPath := filepath.Join(statePath, "conversations.db")

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL,
			user_name TEXT,
			user_text TEXT NOT NULL,
			agent_text TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		);
		CREATE INDEX IF NOT EXISTS idx_conversations_conv_time
			ON conversations(conversation_id, created_at);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append records a completed turn for the given conversation.
func (s *Store) Append(conversationID, userName string, turn Turn) error {
	ts := turn.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO conversations (conversation_id, user_name, user_text, agent_text, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		conversationID, userName, turn.UserText, turn.AgentText, ts.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// RecentTurns returns the last n turns for a conversation in chronological
// order (oldest first).
func (s *Store) RecentTurns(conversationID string, n int) ([]Turn, error) {
	rows, err := s.db.Query(
		`SELECT user_text, agent_text, created_at FROM conversations
		 WHERE conversation_id = ?
		 ORDER BY id DESC LIMIT ?`,
		conversationID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent turns: %w", err)
	}
	defer rows.Close()

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}

	// Query returned newest-first; callers want chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, rows.Err()
}

// SearchResult is one matched exchange from the durable log.
type SearchResult struct {
	Turn     Turn
	UserName string
}

// Search performs a case-insensitive substring match against both sides of
// each turn and returns matches newest-first, bounded by limit.
func (s *Store) Search(conversationID, term string, limit int) ([]SearchResult, error) {
	pattern := "%" + term + "%"
	rows, err := s.db.Query(
		`SELECT user_name, user_text, agent_text, created_at FROM conversations
		 WHERE conversation_id = ?
		 AND (user_text LIKE ? COLLATE NOCASE OR agent_text LIKE ? COLLATE NOCASE)
		 ORDER BY id DESC LIMIT ?`,
		conversationID, pattern, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search turns: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var ts string
		if err := rows.Scan(&r.UserName, &r.Turn.UserText, &r.Turn.AgentText, &ts); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		r.Turn.CreatedAt = parseTimestamp(ts)
		results = append(results, r)
	}
	return results, rows.Err()
}

// Summary reports exchange counts over the trailing window of days.
func (s *Store) Summary(conversationID string, days int) (string, error) {
	var count int
	var first, last sql.NullString
	err := s.db.QueryRow(
		`SELECT COUNT(*), MIN(created_at), MAX(created_at) FROM conversations
		 WHERE conversation_id = ?
		 AND created_at >= datetime('now', '-' || ? || ' days')`,
		conversationID, days,
	).Scan(&count, &first, &last)
	if err != nil {
		return "", fmt.Errorf("summarize conversations: %w", err)
	}

	if count == 0 {
		return fmt.Sprintf("No conversations in the past %d days.", days), nil
	}
	return fmt.Sprintf("Conversation summary (last %d days)\nTotal exchanges: %d\nFirst: %s\nLast: %s",
		days, count, first.String, last.String), nil
}

// ExportMarkdown renders the trailing window of exchanges as a markdown
// document suitable for dropping into the vault.
func (s *Store) ExportMarkdown(conversationID string, days int) (string, error) {
	rows, err := s.db.Query(
		`SELECT user_name, user_text, agent_text, created_at FROM conversations
		 WHERE conversation_id = ?
		 AND created_at >= datetime('now', '-' || ? || ' days')
		 ORDER BY id ASC`,
		conversationID, days,
	)
	if err != nil {
		return "", fmt.Errorf("export conversations: %w", err)
	}
	defer rows.Close()

	var b strings.Builder
	n := 0
	for rows.Next() {
		var userName, userText, agentText, ts string
		if err := rows.Scan(&userName, &userText, &agentText, &ts); err != nil {
			return "", fmt.Errorf("scan export row: %w", err)
		}
		if n == 0 {
			fmt.Fprintf(&b, "# Conversation Log\n\n**Period:** last %d days\n\n---\n\n", days)
		}
		n++
		fmt.Fprintf(&b, "## %s\n\n**%s:** %s\n\n**Donna:** %s\n\n---\n\n", ts, userName, userText, agentText)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if n == 0 {
		return fmt.Sprintf("# No conversations in the past %d days\n", days), nil
	}
	return b.String(), nil
}

// PruneOlderThan deletes turns older than the given number of days and
// returns how many rows were removed. Retention runs outside the dispatcher.
func (s *Store) PruneOlderThan(days int) (int64, error) {
	res, err := s.db.Exec(
		`DELETE FROM conversations WHERE created_at < datetime('now', '-' || ? || ' days')`,
		days,
	)
	if err != nil {
		return 0, fmt.Errorf("prune conversations: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanTurns(rows *sql.Rows) ([]Turn, error) {
	var turns []Turn
	for rows.Next() {
		var t Turn
		var ts string
		if err := rows.Scan(&t.UserText, &t.AgentText, &ts); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.CreatedAt = parseTimestamp(ts)
		turns = append(turns, t)
	}
	return turns, nil
}

func parseTimestamp(ts string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t
		}
	}
	return time.Time{}
}

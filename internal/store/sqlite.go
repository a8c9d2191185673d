package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/callprep/internal/domain"
	"github.com/ashureev/callprep/internal/shared"
	"github.com/bytedance/sonic"
	_ "modernc.org/sqlite"
)

// MemoryDSN is a process-local database shared by every connection of the pool.
const MemoryDSN = "file:callprep?mode=memory&cache=shared"

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex // serializes writers to avoid SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository. dsn is either a file path
// or a "file:" URI such as MemoryDSN.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	memory := isMemoryDSN(dsn)
	if !memory && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", withPragmas(dsn, memory))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if memory {
		// A shared-cache memory database lives only while a connection is
		// open, so keep exactly one and never recycle it.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

func withPragmas(dsn string, memory bool) string {
	pragmas := "_pragma=busy_timeout(5000)"
	if !memory {
		pragmas += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + pragmas
	}
	return dsn + "?" + pragmas
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS coach_sessions (
		owner_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		conversation_id TEXT NOT NULL,
		lead_json TEXT NOT NULL,
		turns_json TEXT NOT NULL,
		asked_json TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (owner_id, session_id)
	);
	CREATE INDEX IF NOT EXISTS idx_coach_sessions_updated ON coach_sessions(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetSession retrieves a coaching session.
func (s *SQLiteStore) GetSession(ctx context.Context, key SessionKey) (*domain.Session, error) {
	query := `
		SELECT owner_id, session_id, conversation_id, lead_json, turns_json,
		       asked_json, notes, created_at, updated_at
		FROM coach_sessions WHERE owner_id = ? AND session_id = ?`

	row := s.db.QueryRowContext(ctx, query, key.OwnerID, key.SessionID)

	var sess domain.Session
	var leadJSON, turnsJSON, askedJSON string
	var createdAt, updatedAt int64

	err := row.Scan(
		&sess.OwnerID, &sess.SessionID, &sess.ConversationID,
		&leadJSON, &turnsJSON, &askedJSON, &sess.Notes,
		&createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan coach session: %w", err)
	}

	if err := sonic.UnmarshalString(leadJSON, &sess.Lead); err != nil {
		return nil, fmt.Errorf("decode lead: %w", err)
	}
	if err := sonic.UnmarshalString(turnsJSON, &sess.Turns); err != nil {
		return nil, fmt.Errorf("decode turns: %w", err)
	}
	if err := sonic.UnmarshalString(askedJSON, &sess.Asked); err != nil {
		return nil, fmt.Errorf("decode asked topics: %w", err)
	}
	if sess.Asked == nil {
		sess.Asked = make(domain.TopicSet)
	}
	sess.CreatedAt = time.UnixMilli(createdAt)
	sess.UpdatedAt = time.UnixMilli(updatedAt)

	return &sess, nil
}

// encodeSession renders the JSON columns of a session.
func encodeSession(sess *domain.Session) (leadJSON, turnsJSON, askedJSON string, err error) {
	if leadJSON, err = sonic.MarshalString(sess.Lead); err != nil {
		return "", "", "", fmt.Errorf("encode lead: %w", err)
	}
	turns := sess.Turns
	if turns == nil {
		turns = []domain.Turn{}
	}
	if turnsJSON, err = sonic.MarshalString(turns); err != nil {
		return "", "", "", fmt.Errorf("encode turns: %w", err)
	}
	asked := sess.Asked
	if asked == nil {
		asked = make(domain.TopicSet)
	}
	if askedJSON, err = sonic.MarshalString(asked); err != nil {
		return "", "", "", fmt.Errorf("encode asked topics: %w", err)
	}
	return leadJSON, turnsJSON, askedJSON, nil
}

// CreateSession inserts a session only if its key is free. An existing row is
// left untouched and false is returned.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess *domain.Session) (bool, error) {
	leadJSON, turnsJSON, askedJSON, err := encodeSession(sess)
	if err != nil {
		return false, err
	}

	query := `
		INSERT INTO coach_sessions (
			owner_id, session_id, conversation_id, lead_json, turns_json,
			asked_json, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, session_id) DO NOTHING`

	var inserted bool
	err = shared.RetryOnConflict(ctx, shared.DefaultRetryPolicy, func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		res, execErr := s.db.ExecContext(ctx, query,
			sess.OwnerID, sess.SessionID, sess.ConversationID,
			leadJSON, turnsJSON, askedJSON, sess.Notes,
			sess.CreatedAt.UnixMilli(), sess.UpdatedAt.UnixMilli(),
		)
		if execErr != nil {
			return execErr
		}
		n, execErr := res.RowsAffected()
		if execErr != nil {
			return execErr
		}
		inserted = n == 1
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("insert coach session: %w", err)
	}
	return inserted, nil
}

// SaveSession creates or replaces a coaching session.
func (s *SQLiteStore) SaveSession(ctx context.Context, sess *domain.Session) error {
	leadJSON, turnsJSON, askedJSON, err := encodeSession(sess)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO coach_sessions (
			owner_id, session_id, conversation_id, lead_json, turns_json,
			asked_json, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, session_id) DO UPDATE SET
			conversation_id = excluded.conversation_id,
			lead_json = excluded.lead_json,
			turns_json = excluded.turns_json,
			asked_json = excluded.asked_json,
			notes = excluded.notes,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`

	err = shared.RetryOnConflict(ctx, shared.DefaultRetryPolicy, func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		_, execErr := s.db.ExecContext(ctx, query,
			sess.OwnerID, sess.SessionID, sess.ConversationID,
			leadJSON, turnsJSON, askedJSON, sess.Notes,
			sess.CreatedAt.UnixMilli(), sess.UpdatedAt.UnixMilli(),
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("upsert coach session: %w", err)
	}
	return nil
}

// DeleteSession removes a coaching session, retrying on SQLITE_BUSY.
func (s *SQLiteStore) DeleteSession(ctx context.Context, key SessionKey) error {
	err := shared.RetryOnConflict(ctx, shared.DefaultRetryPolicy, func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		_, execErr := s.db.ExecContext(ctx,
			`DELETE FROM coach_sessions WHERE owner_id = ? AND session_id = ?`,
			key.OwnerID, key.SessionID)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("delete coach session %s/%s: %w", key.OwnerID, key.SessionID, err)
	}
	return nil
}

// ExpiredSessions lists sessions idle for longer than ttl.
func (s *SQLiteStore) ExpiredSessions(ctx context.Context, ttl time.Duration) ([]SessionKey, error) {
	threshold := time.Now().Add(-ttl).UnixMilli()
	rows, err := s.db.QueryContext(ctx,
		`SELECT owner_id, session_id FROM coach_sessions WHERE updated_at < ? ORDER BY updated_at`,
		threshold)
	if err != nil {
		return nil, fmt.Errorf("query expired sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close expired sessions rows", "error", closeErr)
		}
	}()

	var keys []SessionKey
	for rows.Next() {
		var key SessionKey
		if err := rows.Scan(&key.OwnerID, &key.SessionID); err != nil {
			return nil, fmt.Errorf("scan expired session row: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired sessions: %w", err)
	}
	return keys, nil
}

// CountSessions returns the number of stored sessions.
func (s *SQLiteStore) CountSessions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM coach_sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

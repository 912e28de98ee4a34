// Package session persists the authenticated user locally and drives the
// login/check/logout exchange with the backend.
package session

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/rebuildcl/inspector/pkg/database"
)

// Session is the locally persisted authentication state.
type Session struct {
	Token     string
	ProfileID string
	Email     string
	Name      string
}

// ErrNoSession is returned by Load when nothing is persisted.
var ErrNoSession = errors.New("session: no stored session")

var migrations = []database.Migration{
	{
		Version: 1,
		Name:    "create_session",
		SQL: `
			CREATE TABLE IF NOT EXISTS session (
				id INTEGER PRIMARY KEY CHECK (id = 1),
				token TEXT NOT NULL,
				profile_id TEXT NOT NULL,
				email TEXT NOT NULL,
				name TEXT NOT NULL,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);
		`,
	},
}

// Store keeps at most one session row in the local database. It satisfies
// api.TokenProvider so the REST client always sees the current token.
type Store struct {
	db     *database.DB
	logger *zap.Logger

	mu      sync.RWMutex
	current *Session
}

// NewStore runs the session migrations and loads any persisted session
// into memory.
func NewStore(db *database.DB, logger *zap.Logger) (*Store, error) {
	migrator := database.NewMigrator(db, logger)
	if err := migrator.Run(migrations); err != nil {
		return nil, fmt.Errorf("session migrations: %w", err)
	}

	s := &Store{db: db, logger: logger}
	sess, err := s.load()
	if err != nil && !errors.Is(err, ErrNoSession) {
		return nil, err
	}
	s.current = sess
	return s, nil
}

// Token implements api.TokenProvider. Empty when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.Token
}

// Current returns a copy of the in-memory session, or nil when logged out.
func (s *Store) Current() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	copied := *s.current
	return &copied
}

// Save persists the session and makes it current.
func (s *Store) Save(sess Session) error {
	err := s.db.WithTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO session (id, token, profile_id, email, name, updated_at)
			VALUES (1, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(id) DO UPDATE SET
				token = excluded.token,
				profile_id = excluded.profile_id,
				email = excluded.email,
				name = excluded.name,
				updated_at = CURRENT_TIMESTAMP
		`, sess.Token, sess.ProfileID, sess.Email, sess.Name)
		return err
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()

	s.logger.Info("Session saved", zap.String("profile_id", sess.ProfileID))
	return nil
}

// Clear removes the persisted session. Clearing an empty store is not an
// error.
func (s *Store) Clear() error {
	if _, err := s.db.Exec("DELETE FROM session WHERE id = 1"); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}

	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	s.logger.Info("Session cleared")
	return nil
}

func (s *Store) load() (*Session, error) {
	row := s.db.QueryRow("SELECT token, profile_id, email, name FROM session WHERE id = 1")

	var sess Session
	err := row.Scan(&sess.Token, &sess.ProfileID, &sess.Email, &sess.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &sess, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gostudy/bookbot/internal/domain"
)

// SQLiteTokenStore persists one Calendly credential per chat identity.
type SQLiteTokenStore struct {
	db *DB
}

// NewSQLiteTokenStore creates a token store using the given database.
func NewSQLiteTokenStore(db *DB) *SQLiteTokenStore {
	return &SQLiteTokenStore{db: db}
}

// Save inserts the credential for an identity, or overwrites the token in
// place when one already exists. The upsert is a single statement, so
// concurrent saves for the same identity cannot lose updates.
func (s *SQLiteTokenStore) Save(ctx context.Context, identity, accessToken string) error {
	now := time.Now().UTC()
	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO credentials (identity, access_token, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(identity) DO UPDATE SET
		   access_token = excluded.access_token,
		   created_at = excluded.created_at`,
		identity, accessToken, now.Format(time.DateTime),
	)
	if err != nil {
		return fmt.Errorf("saving credential for %s: %w", identity, err)
	}

	s.db.log.Info().Str("identity", identity).Msg("credential saved")
	return nil
}

// Load returns the credential for an identity, or (nil, nil) when the
// identity has never connected. Absence is a valid state, not an error.
func (s *SQLiteTokenStore) Load(ctx context.Context, identity string) (*domain.Credential, error) {
	var cred domain.Credential
	var createdAt string

	err := s.db.sql.QueryRowContext(ctx,
		`SELECT identity, access_token, created_at FROM credentials WHERE identity = ?`,
		identity,
	).Scan(&cred.Identity, &cred.AccessToken, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading credential for %s: %w", identity, err)
	}

	cred.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
	return &cred, nil
}

package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/linkport/internal/models"
)

// CredentialStore implements [models.CredentialStore] on the auth_states table.
//
// Writes for one platform are serialized by a per-platform mutex and run in a
// transaction, so concurrent Update calls never interleave their read and write.
type CredentialStore struct {
	db    *sql.DB
	mu    sync.Mutex
	locks map[models.PlatformID]*sync.Mutex
	now   func() time.Time
}

// NewCredentialStore creates a new CredentialStore with the given database connection
func NewCredentialStore(db *sql.DB) *CredentialStore {
	return &CredentialStore{
		db:    db,
		locks: make(map[models.PlatformID]*sync.Mutex),
		now:   time.Now,
	}
}

func (s *CredentialStore) lock(p models.PlatformID) func() {
	s.mu.Lock()
	l, ok := s.locks[p]
	if !ok {
		l = &sync.Mutex{}
		s.locks[p] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Get returns the stored state for platform, or a disconnected state when none is stored.
func (s *CredentialStore) Get(platform models.PlatformID) (*models.AuthState, error) {
	return s.get(s.db, platform)
}

// Set replaces the stored state for state.Platform.
func (s *CredentialStore) Set(state *models.AuthState) error {
	if state == nil || state.Platform == "" {
		return errors.New("auth state requires a platform")
	}
	defer s.lock(state.Platform)()
	return s.put(s.db, state)
}

// Clear resets platform to disconnected. Clearing an absent platform is a no-op.
func (s *CredentialStore) Clear(platform models.PlatformID) error {
	defer s.lock(platform)()

	if _, err := s.db.Exec("DELETE FROM auth_states WHERE platform = ?", string(platform)); err != nil {
		return fmt.Errorf("failed to clear auth state: %w", err)
	}
	return nil
}

// Update reads the state for platform, applies fn and writes the result back in one
// transaction. An error from fn aborts the write.
func (s *CredentialStore) Update(platform models.PlatformID, fn func(state *models.AuthState) error) error {
	defer s.lock(platform)()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	state, err := s.get(tx, platform)
	if err != nil {
		return err
	}

	if err := fn(state); err != nil {
		return err
	}
	state.Platform = platform

	if err := s.put(tx, state); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit auth state: %w", err)
	}
	return nil
}

func (s *CredentialStore) get(q querier, platform models.PlatformID) (*models.AuthState, error) {
	var (
		connected    bool
		profile      sql.NullString
		accessToken  sql.NullString
		refreshToken sql.NullString
		expiresAt    sql.NullTime
		updatedAt    time.Time
	)

	err := q.QueryRow(`
		SELECT connected, profile, access_token, refresh_token, expires_at, updated_at
		FROM auth_states
		WHERE platform = ?
	`, string(platform)).Scan(&connected, &profile, &accessToken, &refreshToken, &expiresAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Disconnected(platform), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan auth state: %w", err)
	}

	state := &models.AuthState{
		Platform:     platform,
		Connected:    connected,
		AccessToken:  accessToken.String,
		RefreshToken: refreshToken.String,
		UpdatedAt:    updatedAt,
	}
	if expiresAt.Valid {
		state.ExpiresAt = expiresAt.Time
	}
	if profile.Valid && profile.String != "" {
		var p models.UserProfile
		if err := json.Unmarshal([]byte(profile.String), &p); err != nil {
			return nil, fmt.Errorf("failed to decode profile: %w", err)
		}
		state.Profile = &p
	}

	return state, nil
}

func (s *CredentialStore) put(q querier, state *models.AuthState) error {
	var profile any
	if state.Profile != nil {
		data, err := json.Marshal(state.Profile)
		if err != nil {
			return fmt.Errorf("failed to encode profile: %w", err)
		}
		profile = string(data)
	}

	var expiresAt any
	if !state.ExpiresAt.IsZero() {
		expiresAt = state.ExpiresAt
	}

	state.UpdatedAt = s.now()

	_, err := q.Exec(`
		INSERT INTO auth_states (platform, connected, profile, access_token, refresh_token, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(platform) DO UPDATE SET
			connected = excluded.connected,
			profile = excluded.profile,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`,
		string(state.Platform),
		state.Connected,
		profile,
		nullIfEmpty(state.AccessToken),
		nullIfEmpty(state.RefreshToken),
		expiresAt,
		state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save auth state: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

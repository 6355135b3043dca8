package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/linkport/internal/models"
	"github.com/desertthunder/linkport/internal/shared"
)

// PlaylistStore implements [models.PlaylistStore] for imported playlists.
//
// A playlist row owns its ordered imported_tracks rows; Update replaces them wholesale.
type PlaylistStore struct {
	db *sql.DB
}

// NewPlaylistStore creates a new PlaylistStore with the given database connection
func NewPlaylistStore(db *sql.DB) *PlaylistStore {
	return &PlaylistStore{db: db}
}

// Add inserts playlist and its tracks.
func (r *PlaylistStore) Add(playlist *models.ImportedPlaylist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "imported_playlists")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO imported_playlists (id, sequence, name, source, source_url, image_url, track_count, imported_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.Exec(query,
		playlist.ID,
		sequence,
		playlist.Name,
		string(playlist.Source),
		playlist.SourceURL,
		playlist.ImageURL,
		playlist.TrackCount,
		playlist.ImportedAt,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	if err := insertTracks(tx, playlist.ID, playlist.Tracks); err != nil {
		return err
	}

	return tx.Commit()
}

// Get retrieves a playlist and its tracks by id, excluding removed playlists.
func (r *PlaylistStore) Get(id string) (*models.ImportedPlaylist, error) {
	query := `
		SELECT id, name, source, source_url, image_url, track_count, imported_at
		FROM imported_playlists
		WHERE id = ? AND deleted_at IS NULL
	`

	playlist, err := scanPlaylist(r.db.QueryRow(query, id))
	if err != nil {
		return nil, err
	}

	tracks, err := r.tracks(playlist.ID)
	if err != nil {
		return nil, err
	}
	playlist.Tracks = tracks

	return playlist, nil
}

// Update rewrites the playlist's name, image and tracks.
func (r *PlaylistStore) Update(playlist *models.ImportedPlaylist) error {
	playlist.TrackCount = len(playlist.Tracks)
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE imported_playlists
		SET name = ?, image_url = ?, track_count = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := tx.Exec(query, playlist.Name, playlist.ImageURL, playlist.TrackCount, time.Now(), playlist.ID)
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlist.ID)
	}

	if _, err := tx.Exec("DELETE FROM imported_tracks WHERE playlist_id = ?", playlist.ID); err != nil {
		return fmt.Errorf("failed to clear tracks: %w", err)
	}
	if err := insertTracks(tx, playlist.ID, playlist.Tracks); err != nil {
		return err
	}

	return tx.Commit()
}

// Remove soft-deletes a playlist by id.
func (r *PlaylistStore) Remove(id string) error {
	query := `
		UPDATE imported_playlists
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to remove playlist: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}

	return nil
}

// List returns playlists in import order without their tracks.
//
// Supported criteria: "source" (string or [models.PlatformID]) and "name" (substring match).
func (r *PlaylistStore) List(criteria map[string]any) ([]*models.ImportedPlaylist, error) {
	query := `
		SELECT id, name, source, source_url, image_url, track_count, imported_at
		FROM imported_playlists
		WHERE deleted_at IS NULL
	`

	args := []any{}

	switch source := criteria["source"].(type) {
	case string:
		if source != "" {
			query += " AND source = ?"
			args = append(args, source)
		}
	case models.PlatformID:
		if source != "" {
			query += " AND source = ?"
			args = append(args, string(source))
		}
	}

	if name, ok := criteria["name"].(string); ok && name != "" {
		query += " AND name LIKE ?"
		args = append(args, "%"+name+"%")
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	playlists := []*models.ImportedPlaylist{}
	for rows.Next() {
		playlist, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, playlist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return playlists, nil
}

func (r *PlaylistStore) tracks(playlistID string) ([]models.StreamingTrack, error) {
	query := `
		SELECT track_id, name, artist, album, duration_ms, image_url, playable_uri, preview_url, is_playable, platform
		FROM imported_tracks
		WHERE playlist_id = ?
		ORDER BY position ASC
	`

	rows, err := r.db.Query(query, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	tracks := []models.StreamingTrack{}
	for rows.Next() {
		var (
			t        models.StreamingTrack
			platform string
		)
		if err := rows.Scan(&t.ID, &t.Name, &t.Artist, &t.Album, &t.DurationMs, &t.ImageURL, &t.PlayableURI, &t.PreviewURL, &t.IsPlayable, &platform); err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		t.Platform = models.PlatformID(platform)
		tracks = append(tracks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

func insertTracks(tx *sql.Tx, playlistID string, tracks []models.StreamingTrack) error {
	stmt, err := tx.Prepare(`
		INSERT INTO imported_tracks (id, playlist_id, position, track_id, name, artist, album, duration_ms, image_url, playable_uri, preview_url, is_playable, platform)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare track insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range tracks {
		_, err := stmt.Exec(
			shared.GenerateID(),
			playlistID,
			i,
			t.ID,
			t.Name,
			t.Artist,
			t.Album,
			t.DurationMs,
			t.ImageURL,
			t.PlayableURI,
			t.PreviewURL,
			t.IsPlayable,
			string(t.Platform),
		)
		if err != nil {
			return fmt.Errorf("failed to insert track %d: %w", i, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlaylist(row rowScanner) (*models.ImportedPlaylist, error) {
	var (
		p      models.ImportedPlaylist
		source string
	)

	err := row.Scan(&p.ID, &p.Name, &source, &p.SourceURL, &p.ImageURL, &p.TrackCount, &p.ImportedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrPlaylistNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	p.Source = models.PlatformID(source)
	p.Tracks = []models.StreamingTrack{}
	return &p, nil
}

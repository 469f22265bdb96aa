package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// CollectionRecord is one saved selection.
type CollectionRecord struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	Translation string    `json:"translation,omitempty"`
	Note        string    `json:"note,omitempty"`
	SourceURL   string    `json:"sourceUrl,omitempty"`
	SourceTitle string    `json:"sourceTitle,omitempty"`
	Language    string    `json:"language,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ErrDuplicateRecord indicates the same text was already collected.
var ErrDuplicateRecord = errors.New("storage: record already collected")

func hashContent(content string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(content)))
	return hex.EncodeToString(sum[:])
}

// CreateRecord saves a new collection record. The ID is assigned here; ULIDs
// keep insertion order sortable without a separate sequence. Collecting the
// same text twice returns ErrDuplicateRecord.
func (s *Store) CreateRecord(ctx context.Context, rec *CollectionRecord) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	if strings.TrimSpace(rec.Content) == "" {
		return errors.New("storage: record content cannot be empty")
	}

	now := time.Now().UTC()
	rec.ID = ulid.Make().String()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collection_records
			(id, content, content_hash, translation, note, source_url, source_title, language, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Content, hashContent(rec.Content), rec.Translation, rec.Note,
		rec.SourceURL, rec.SourceTitle, rec.Language, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateRecord
		}
		return err
	}
	return nil
}

// GetRecord returns a single record by ID, or nil if it does not exist.
func (s *Store) GetRecord(ctx context.Context, id string) (*CollectionRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content, translation, note, source_url, source_title, language, created_at, updated_at
		FROM collection_records
		WHERE id = ?
	`, id)

	var rec CollectionRecord
	err := row.Scan(&rec.ID, &rec.Content, &rec.Translation, &rec.Note,
		&rec.SourceURL, &rec.SourceTitle, &rec.Language, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListRecords returns records newest-first. A non-positive limit returns
// everything.
func (s *Store) ListRecords(ctx context.Context, limit int) ([]CollectionRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	query := `
		SELECT id, content, translation, note, source_url, source_title, language, created_at, updated_at
		FROM collection_records
		ORDER BY created_at DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]CollectionRecord, 0)
	for rows.Next() {
		var rec CollectionRecord
		if err := rows.Scan(&rec.ID, &rec.Content, &rec.Translation, &rec.Note,
			&rec.SourceURL, &rec.SourceTitle, &rec.Language, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpdateRecordNote replaces the note on a record.
func (s *Store) UpdateRecordNote(ctx context.Context, id, note string) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE collection_records SET note = ?, updated_at = ? WHERE id = ?
	`, note, time.Now().UTC(), id)
	return err
}

// DeleteRecord removes a record. Deleting a missing record is a no-op.
func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM collection_records WHERE id = ?`, id)
	return err
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/msomdec/shopfront/internal/domain"
)

// FileStore keeps image bytes in a BYTEA table.
type FileStore struct {
	db *sql.DB
}

func (s *FileStore) Save(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO file_blobs (storage_key, content_type, data) VALUES ($1, $2, $3)`,
		key, contentType, data,
	)
	if err != nil {
		return fmt.Errorf("save file blob: %w", err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	var (
		data        []byte
		contentType string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data, content_type FROM file_blobs WHERE storage_key = $1`, key,
	).Scan(&data, &contentType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", domain.ErrNotFound
		}
		return nil, "", fmt.Errorf("get file blob: %w", err)
	}
	return data, contentType, nil
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM file_blobs WHERE storage_key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete file blob: %w", err)
	}
	return rowsOrNotFound(result, domain.ErrNotFound)
}

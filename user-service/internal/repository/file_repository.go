package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/models"
)

var ErrFileNotFound = errors.New("file not found")

// FileRepository stores uploaded file contents in PostgreSQL.
type FileRepository struct {
	db *sql.DB
}

func NewFileRepository(db *sql.DB) *FileRepository {
	return &FileRepository{db: db}
}

// SaveAll inserts every file in a single transaction.
func (r *FileRepository) SaveAll(ctx context.Context, files []models.File) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO user_files (name, mime_type, url, data, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare file insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range files {
		if _, err := stmt.ExecContext(ctx, f.Name, f.MimeType, f.URL, f.Data, f.CreatedAt); err != nil {
			return fmt.Errorf("failed to save file %s: %w", f.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit files: %w", err)
	}
	return nil
}

func (r *FileRepository) Get(ctx context.Context, name string) (*models.File, error) {
	query := `SELECT name, mime_type, url, data, created_at FROM user_files WHERE name = $1`

	var f models.File
	err := r.db.QueryRowContext(ctx, query, name).Scan(&f.Name, &f.MimeType, &f.URL, &f.Data, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return &f, nil
}

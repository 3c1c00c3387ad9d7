package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrDuplicate    = errors.New("username or email already exists")
)

// UserRepository persists user accounts in PostgreSQL.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, email, password_hash, attributes, files, acl, created_at, updated_at`

func (r *UserRepository) Create(ctx context.Context, rec models.UserRecord, passwordHash string) error {
	attrs, files, acl, err := encodeJSONColumns(rec)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.ExecContext(ctx, query,
		rec.ID, rec.Username, rec.Email, passwordHash,
		attrs, files, acl,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByUsername returns the record and password hash for username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.UserRecord, string, error) {
	return r.getOne(ctx, `username = $1`, username)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.UserRecord, string, error) {
	return r.getOne(ctx, `lower(email) = lower($1)`, email)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.UserRecord, string, error) {
	return r.getOne(ctx, `id = $1`, id)
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg any) (*models.UserRecord, string, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE ` + where + ` AND deleted_at IS NULL
	`
	var (
		rec               models.UserRecord
		hash              string
		attrs, files, acl []byte
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&rec.ID, &rec.Username, &rec.Email, &hash,
		&attrs, &files, &acl,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, "", ErrUserNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get user: %w", err)
	}

	if err := decodeJSONColumns(&rec, attrs, files, acl); err != nil {
		return nil, "", err
	}
	return &rec, hash, nil
}

// Update writes every mutable field of rec.
func (r *UserRepository) Update(ctx context.Context, rec models.UserRecord) error {
	attrs, files, acl, err := encodeJSONColumns(rec)
	if err != nil {
		return err
	}

	query := `
		UPDATE users
		SET username = $2, email = $3, attributes = $4, files = $5, acl = $6, updated_at = $7
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.Username, rec.Email, attrs, files, acl, rec.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

func encodeJSONColumns(rec models.UserRecord) (attrs, files, acl []byte, err error) {
	if attrs, err = json.Marshal(nonNilMap(rec.Attributes)); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode attributes: %w", err)
	}
	if files, err = json.Marshal(nonNilMap(rec.Files)); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode files: %w", err)
	}
	if acl, err = json.Marshal(rec.ACL); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode acl: %w", err)
	}
	return attrs, files, acl, nil
}

func decodeJSONColumns(rec *models.UserRecord, attrs, files, acl []byte) error {
	if err := json.Unmarshal(attrs, &rec.Attributes); err != nil {
		return fmt.Errorf("failed to decode attributes: %w", err)
	}
	if err := json.Unmarshal(files, &rec.Files); err != nil {
		return fmt.Errorf("failed to decode files: %w", err)
	}
	if err := json.Unmarshal(acl, &rec.ACL); err != nil {
		return fmt.Errorf("failed to decode acl: %w", err)
	}
	return nil
}

func nonNilMap[V any](m map[string]V) map[string]V {
	if m == nil {
		return map[string]V{}
	}
	return m
}

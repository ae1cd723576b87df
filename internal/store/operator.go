// Package store provides PostgreSQL access for redirclean: the content
// sources cleanup jobs rewrite, redirect rules, operators and the job
// table. Each store struct wraps a *sql.DB and exposes typed query methods.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"redirclean/internal/models"
)

const operatorColumns = `id, email, password_hash, display_name, totp_secret, totp_enabled, created_at, updated_at`

// OperatorStore handles operator accounts.
type OperatorStore struct {
	db *sql.DB
}

// NewOperatorStore creates a new OperatorStore with the given database connection.
func NewOperatorStore(db *sql.DB) *OperatorStore {
	return &OperatorStore{db: db}
}

func scanOperator(row interface{ Scan(...any) error }) (*models.Operator, error) {
	o := &models.Operator{}
	err := row.Scan(
		&o.ID, &o.Email, &o.PasswordHash, &o.DisplayName,
		&o.TOTPSecret, &o.TOTPEnabled, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

// FindByEmail retrieves an operator by email address. Returns nil if not found.
func (s *OperatorStore) FindByEmail(ctx context.Context, email string) (*models.Operator, error) {
	o, err := scanOperator(s.db.QueryRowContext(ctx,
		`SELECT `+operatorColumns+` FROM operators WHERE email = $1`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find operator by email: %w", err)
	}
	return o, nil
}

// FindByID retrieves an operator by UUID. Returns nil if not found.
func (s *OperatorStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Operator, error) {
	o, err := scanOperator(s.db.QueryRowContext(ctx,
		`SELECT `+operatorColumns+` FROM operators WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find operator by id: %w", err)
	}
	return o, nil
}

// Create inserts a new operator with a bcrypt-hashed password.
func (s *OperatorStore) Create(ctx context.Context, email, password, displayName string) (*models.Operator, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	o, err := scanOperator(s.db.QueryRowContext(ctx, `
		INSERT INTO operators (email, password_hash, display_name)
		VALUES ($1, $2, $3)
		RETURNING `+operatorColumns,
		email, string(hash), displayName))
	if err != nil {
		return nil, fmt.Errorf("create operator: %w", err)
	}
	return o, nil
}

// SetTOTPSecret saves the TOTP secret for an operator during 2FA setup.
func (s *OperatorStore) SetTOTPSecret(ctx context.Context, id uuid.UUID, secret string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE operators SET totp_secret = $1, updated_at = NOW() WHERE id = $2
	`, secret, id)
	if err != nil {
		return fmt.Errorf("set totp secret: %w", err)
	}
	return nil
}

// EnableTOTP marks 2FA as active after a successful code verification.
func (s *OperatorStore) EnableTOTP(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE operators SET totp_enabled = TRUE, updated_at = NOW() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("enable totp: %w", err)
	}
	return nil
}

// CheckPassword verifies a plaintext password against the operator's stored hash.
func (s *OperatorStore) CheckPassword(o *models.Operator, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(o.PasswordHash), []byte(password)) == nil
}

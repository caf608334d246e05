package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/seoinsight/seoinsight/internal/models"
)

// GetCredential loads a tenant's provider settings. ErrNotFound when the
// tenant has saved none.
func (s *Store) GetCredential(ctx context.Context, tenantID string) (models.TenantCredential, error) {
	q := s.sql.Select("user_id", "provider", "model", "encrypted_api_key", "updated_at").
		From("user_ai_settings").
		Where(sq.Eq{"user_id": tenantID})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return models.TenantCredential{}, fmt.Errorf("build get credential query: %w", err)
	}

	var (
		c        models.TenantCredential
		provider sql.NullString
		model    sql.NullString
	)
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(
		&c.TenantID,
		&provider,
		&model,
		&c.EncryptedKey,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.TenantCredential{}, ErrNotFound
		}
		return models.TenantCredential{}, fmt.Errorf("get credential: %w", err)
	}
	c.Provider = provider.String
	c.Model = model.String
	return c, nil
}

// SaveCredential inserts or replaces a tenant's settings. EncryptedKey must
// already be sealed by the vault.
func (s *Store) SaveCredential(ctx context.Context, c models.TenantCredential) error {
	var model any
	if c.Model != "" {
		model = c.Model
	}
	q := s.sql.Insert("user_ai_settings").
		Columns("user_id", "provider", "model", "encrypted_api_key", "updated_at").
		Values(c.TenantID, c.Provider, model, c.EncryptedKey, sq.Expr("now()")).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET provider = excluded.provider, model = excluded.model, encrypted_api_key = excluded.encrypted_api_key, updated_at = excluded.updated_at")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build save credential query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

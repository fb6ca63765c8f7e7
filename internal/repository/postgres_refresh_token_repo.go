package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/fanfootprint/internal/model"
)

// PostgresRefreshTokenRepo はPostgreSQLを使用したリフレッシュトークンリポジトリ。
type PostgresRefreshTokenRepo struct {
	db *sql.DB
}

// NewPostgresRefreshTokenRepo はPostgresRefreshTokenRepoを生成する。
func NewPostgresRefreshTokenRepo(db *sql.DB) *PostgresRefreshTokenRepo {
	return &PostgresRefreshTokenRepo{db: db}
}

// Create はリフレッシュトークンを保存する。
func (r *PostgresRefreshTokenRepo) Create(ctx context.Context, token *model.RefreshToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auth_refresh_tokens (token_hash, account_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)`,
		token.TokenHash, token.AccountID, token.ExpiresAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert refresh token: %w", err)
	}
	return nil
}

// FindByHash はハッシュでトークンを検索する。見つからない場合はnilを返す。
func (r *PostgresRefreshTokenRepo) FindByHash(ctx context.Context, hash string) (*model.RefreshToken, error) {
	token := &model.RefreshToken{}
	var revokedAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT token_hash, account_id, expires_at, revoked_at, created_at
		 FROM auth_refresh_tokens
		 WHERE token_hash = $1`,
		hash,
	).Scan(&token.TokenHash, &token.AccountID, &token.ExpiresAt, &revokedAt, &token.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	}
	if revokedAt.Valid {
		token.RevokedAt = &revokedAt.Time
	}
	return token, nil
}

// Revoke は指定トークンを失効させる。既に失効済みの場合は何もしない。
func (r *PostgresRefreshTokenRepo) Revoke(ctx context.Context, hash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE auth_refresh_tokens SET revoked_at = now()
		 WHERE token_hash = $1 AND revoked_at IS NULL`,
		hash,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// DeleteExpired はbefore以前に期限切れとなったトークンを削除し、削除件数を返す。
func (r *PostgresRefreshTokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM auth_refresh_tokens WHERE expires_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired refresh tokens: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// compile-time interface check
var _ RefreshTokenRepository = (*PostgresRefreshTokenRepo)(nil)

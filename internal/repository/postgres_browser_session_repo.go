package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/fanfootprint/internal/backend"
	"github.com/hitoshi/fanfootprint/internal/model"
)

// PostgresBrowserSessionRepo はPostgreSQLを使用したブラウザセッションリポジトリ。
// キーごとに最新の認証セッションを1行だけ保持する。
type PostgresBrowserSessionRepo struct {
	db *sql.DB
}

// NewPostgresBrowserSessionRepo はPostgresBrowserSessionRepoを生成する。
func NewPostgresBrowserSessionRepo(db *sql.DB) *PostgresBrowserSessionRepo {
	return &PostgresBrowserSessionRepo{db: db}
}

// Load は指定キーのセッションを返す。見つからない場合はnilを返す。
func (r *PostgresBrowserSessionRepo) Load(ctx context.Context, key string) (*model.AuthSession, error) {
	session := &model.AuthSession{}
	var expiresAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, expires_at, user_id, email
		 FROM browser_sessions
		 WHERE key = $1`,
		key,
	).Scan(&session.AccessToken, &session.RefreshToken, &expiresAt, &session.User.ID, &session.User.Email)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load browser session: %w", err)
	}
	if expiresAt.Valid {
		session.ExpiresAt = expiresAt.Time
	}
	return session, nil
}

// Save は指定キーのセッションを上書き保存する。
func (r *PostgresBrowserSessionRepo) Save(ctx context.Context, key string, session *model.AuthSession) error {
	var expiresAt sql.NullTime
	if !session.ExpiresAt.IsZero() {
		expiresAt = sql.NullTime{Time: session.ExpiresAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO browser_sessions (key, access_token, refresh_token, expires_at, user_id, email, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 ON CONFLICT (key) DO UPDATE SET
		   access_token = EXCLUDED.access_token,
		   refresh_token = EXCLUDED.refresh_token,
		   expires_at = EXCLUDED.expires_at,
		   user_id = EXCLUDED.user_id,
		   email = EXCLUDED.email,
		   updated_at = now()`,
		key, session.AccessToken, session.RefreshToken, expiresAt, session.User.ID, session.User.Email,
	)
	if err != nil {
		return fmt.Errorf("failed to save browser session: %w", err)
	}
	return nil
}

// Delete は指定キーのセッションを削除する。
func (r *PostgresBrowserSessionRepo) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM browser_sessions WHERE key = $1`,
		key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete browser session: %w", err)
	}
	return nil
}

// DeleteStale はbefore以前から更新されていないセッションを削除し、削除件数を返す。
func (r *PostgresBrowserSessionRepo) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM browser_sessions WHERE updated_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale browser sessions: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// compile-time interface check
var (
	_ BrowserSessionRepository = (*PostgresBrowserSessionRepo)(nil)
	_ backend.TokenStore       = (*PostgresBrowserSessionRepo)(nil)
)

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/fanfootprint/internal/model"
)

// ErrDuplicateEmail は同じメールアドレスのアカウントが既に存在することを表す。
var ErrDuplicateEmail = errors.New("email already registered")

// pgUniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const pgUniqueViolation = "23505"

// PostgresAccountRepo はPostgreSQLを使用した認証アカウントリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

// FindByEmail はメールアドレスでアカウントを検索する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	return r.findOne(ctx,
		`SELECT id, email, password_hash, created_at FROM auth_accounts WHERE lower(email) = lower($1)`,
		email,
	)
}

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	if !validUUID(id) {
		return nil, nil
	}
	return r.findOne(ctx,
		`SELECT id, email, password_hash, created_at FROM auth_accounts WHERE id = $1`,
		id,
	)
}

func (r *PostgresAccountRepo) findOne(ctx context.Context, query string, arg string) (*model.Account, error) {
	account := &model.Account{}
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&account.ID, &account.Email, &account.PasswordHash, &account.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return account, nil
}

// Create はアカウントを作成する。メールアドレスが重複する場合はErrDuplicateEmailを返す。
func (r *PostgresAccountRepo) Create(ctx context.Context, account *model.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auth_accounts (id, email, password_hash, created_at)
		 VALUES ($1, $2, $3, $4)`,
		account.ID, account.Email, account.PasswordHash, account.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)

package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/fanfootprint/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	if !validUUID(id) {
		return nil, nil
	}

	profile := &model.Profile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, email FROM users WHERE id = $1`,
		id,
	).Scan(&profile.ID, &profile.Username, &profile.Email)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by ID: %w", err)
	}

	return profile, nil
}

// Create はプロフィール行を作成する。
func (r *PostgresProfileRepo) Create(ctx context.Context, profile model.Profile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email) VALUES ($1, $2, $3)`,
		profile.ID, profile.Username, profile.Email,
	)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)

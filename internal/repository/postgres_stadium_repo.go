package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/fanfootprint/internal/backend"
	"github.com/hitoshi/fanfootprint/internal/model"
)

// PostgresStadiumRepo はPostgreSQLを使用したスタジアムリポジトリ。
type PostgresStadiumRepo struct {
	db *sql.DB
}

// NewPostgresStadiumRepo はPostgresStadiumRepoを生成する。
func NewPostgresStadiumRepo(db *sql.DB) *PostgresStadiumRepo {
	return &PostgresStadiumRepo{db: db}
}

const stadiumColumns = `id, user_id, name, city, sport, lat, lng, visited, created_at`

// ListByUserID は指定ユーザーのスタジアムを作成順に返す。
func (r *PostgresStadiumRepo) ListByUserID(ctx context.Context, userID string) ([]model.Stadium, error) {
	stadiums := []model.Stadium{}
	if !validUUID(userID) {
		return stadiums, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+stadiumColumns+`
		 FROM stadiums
		 WHERE user_id = $1
		 ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stadiums: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanStadium(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stadium: %w", err)
		}
		stadiums = append(stadiums, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stadiums: %w", err)
	}

	return stadiums, nil
}

// Create はスタジアム行を作成し、採番済みの行を返す。
func (r *PostgresStadiumRepo) Create(ctx context.Context, userID string, draft model.StadiumDraft) (*model.Stadium, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO stadiums (id, user_id, name, city, sport, lat, lng, visited)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+stadiumColumns,
		uuid.New().String(), userID, draft.Name, draft.City, draft.Sport,
		nullFloat(draft.Lat), nullFloat(draft.Lng), backend.DefaultVisited(draft),
	)

	s, err := scanStadium(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert stadium: %w", err)
	}
	return s, nil
}

// Update は指定フィールドのみを更新し、更新件数を返す。
// IDと所有者の両方が一致しない場合は0件となる。
func (r *PostgresStadiumRepo) Update(ctx context.Context, userID, id string, update model.StadiumUpdate) (int64, error) {
	if !validUUID(id) || !validUUID(userID) {
		return 0, nil
	}

	var sets []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.Name != nil {
		add("name", *update.Name)
	}
	if update.City != nil {
		add("city", *update.City)
	}
	if update.Sport != nil {
		add("sport", *update.Sport)
	}
	if update.Lat != nil {
		add("lat", *update.Lat)
	}
	if update.Lng != nil {
		add("lng", *update.Lng)
	}
	if update.Visited != nil {
		add("visited", *update.Visited)
	}
	if len(sets) == 0 {
		return 0, fmt.Errorf("no fields to update")
	}

	args = append(args, id, userID)
	query := fmt.Sprintf(`UPDATE stadiums SET %s WHERE id = $%d AND user_id = $%d`,
		strings.Join(sets, ", "), len(args)-1, len(args))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update stadium: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// Delete は行を削除し、削除件数を返す。
// IDと所有者の両方が一致しない場合は0件となる。
func (r *PostgresStadiumRepo) Delete(ctx context.Context, userID, id string) (int64, error) {
	if !validUUID(id) || !validUUID(userID) {
		return 0, nil
	}

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM stadiums WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stadium: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStadium(row rowScanner) (*model.Stadium, error) {
	s := &model.Stadium{}
	var lat, lng sql.NullFloat64
	if err := row.Scan(&s.ID, &s.UserID, &s.Name, &s.City, &s.Sport, &lat, &lng, &s.Visited, &s.CreatedAt); err != nil {
		return nil, err
	}
	if lat.Valid {
		s.Lat = &lat.Float64
	}
	if lng.Valid {
		s.Lng = &lng.Float64
	}
	return s, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// validUUID はidがUUID形式かを判定する。
// UUID以外の値をuuid型カラムと比較するとPostgreSQLがエラーを返すため、事前に0件として扱う。
func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// compile-time interface check
var _ StadiumRepository = (*PostgresStadiumRepo)(nil)

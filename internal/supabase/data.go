package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/fanfootprint/internal/backend"
	"github.com/hitoshi/fanfootprint/internal/model"
)

// 行APIの操作名。
const (
	opFindProfile   = "rest_find_profile"
	opInsertProfile = "rest_insert_profile"
	opListStadiums  = "rest_list_stadiums"
	opInsertStadium = "rest_insert_stadium"
	opUpdateStadium = "rest_update_stadium"
	opDeleteStadium = "rest_delete_stadium"
)

const (
	usersPath    = "/rest/v1/users"
	stadiumsPath = "/rest/v1/stadiums"

	preferRepresentation = "return=representation"
	preferMinimal        = "return=minimal"
)

// stadiumRow はstadiumsテーブルの行のJSON表現。
type stadiumRow struct {
	ID        string    `json:"id,omitempty"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	City      string    `json:"city"`
	Sport     string    `json:"sport"`
	Lat       *float64  `json:"lat"`
	Lng       *float64  `json:"lng"`
	Visited   bool      `json:"visited"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

func (r stadiumRow) toModel() model.Stadium {
	return model.Stadium{
		ID:        r.ID,
		UserID:    r.UserID,
		Name:      r.Name,
		City:      r.City,
		Sport:     r.Sport,
		Lat:       r.Lat,
		Lng:       r.Lng,
		Visited:   r.Visited,
		CreatedAt: r.CreatedAt,
	}
}

// insertStadiumRow は作成時のボディ。idとcreated_atはバックエンドが採番する。
type insertStadiumRow struct {
	UserID  string   `json:"user_id"`
	Name    string   `json:"name"`
	City    string   `json:"city"`
	Sport   string   `json:"sport"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
	Visited bool     `json:"visited"`
}

// SessionSource は行APIの呼び出しに使うセッションを返す。
// *Authが実装し、期限切れのアクセストークンはここでリフレッシュされる。
type SessionSource interface {
	GetSession(ctx context.Context) (*model.AuthSession, error)
}

// Data は1つのブラウザセッションに紐づくbackend.DataStoreの実装。
// 行レベルセキュリティのため、同じブラウザセッションのアクセストークンで呼び出す。
type Data struct {
	client   *Client
	sessions SessionSource
}

// NewData はDataを生成する。
func NewData(client *Client, sessions SessionSource) *Data {
	return &Data{client: client, sessions: sessions}
}

// FindProfile は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
func (d *Data) FindProfile(ctx context.Context, userID string) (*model.Profile, error) {
	var rows []model.Profile
	err := d.call(ctx, request{
		op:     opFindProfile,
		method: http.MethodGet,
		path:   usersPath,
		query: url.Values{
			"select": {"*"},
			"id":     {"eq." + userID},
		},
	}, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// InsertProfile はプロフィール行を作成する。
func (d *Data) InsertProfile(ctx context.Context, profile model.Profile) error {
	return d.call(ctx, request{
		op:     opInsertProfile,
		method: http.MethodPost,
		path:   usersPath,
		prefer: preferMinimal,
		body:   []model.Profile{profile},
	}, nil)
}

// ListStadiums はユーザーの全スタジアムを作成順に返す。
func (d *Data) ListStadiums(ctx context.Context, userID string) ([]model.Stadium, error) {
	var rows []stadiumRow
	err := d.call(ctx, request{
		op:     opListStadiums,
		method: http.MethodGet,
		path:   stadiumsPath,
		query: url.Values{
			"select":  {"*"},
			"user_id": {"eq." + userID},
			"order":   {"created_at.asc,id.asc"},
		},
	}, &rows)
	if err != nil {
		return nil, err
	}

	stadiums := make([]model.Stadium, 0, len(rows))
	for _, r := range rows {
		stadiums = append(stadiums, r.toModel())
	}
	return stadiums, nil
}

// InsertStadium はスタジアムを作成し、採番済みの行を返す。
func (d *Data) InsertStadium(ctx context.Context, userID string, draft model.StadiumDraft) (*model.Stadium, error) {
	var rows []stadiumRow
	err := d.call(ctx, request{
		op:     opInsertStadium,
		method: http.MethodPost,
		path:   stadiumsPath,
		prefer: preferRepresentation,
		body: []insertStadiumRow{{
			UserID:  userID,
			Name:    draft.Name,
			City:    draft.City,
			Sport:   draft.Sport,
			Lat:     draft.Lat,
			Lng:     draft.Lng,
			Visited: backend.DefaultVisited(draft),
		}},
	}, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("backend returned no inserted row")
	}
	s := rows[0].toModel()
	return &s, nil
}

// UpdateStadium はIDとユーザーIDが一致する行の指定フィールドのみを更新し、更新件数を返す。
func (d *Data) UpdateStadium(ctx context.Context, userID, stadiumID string, update model.StadiumUpdate) (int64, error) {
	body := updateBody(update)
	if len(body) == 0 {
		return 0, errors.New("No fields to update")
	}

	var rows []stadiumRow
	err := d.call(ctx, request{
		op:     opUpdateStadium,
		method: http.MethodPatch,
		path:   stadiumsPath,
		query:  ownerScope(userID, stadiumID),
		prefer: preferRepresentation,
		body:   body,
	}, &rows)
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

// DeleteStadium はIDとユーザーIDが一致する行を削除し、削除件数を返す。
func (d *Data) DeleteStadium(ctx context.Context, userID, stadiumID string) (int64, error) {
	var rows []stadiumRow
	err := d.call(ctx, request{
		op:     opDeleteStadium,
		method: http.MethodDelete,
		path:   stadiumsPath,
		query:  ownerScope(userID, stadiumID),
		prefer: preferRepresentation,
	}, &rows)
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

// call は現在のセッションのアクセストークンを付けて呼び出す。
// 期限切れのトークンは送信前にリフレッシュされる。セッションがない場合は匿名キーで呼び出す。
func (d *Data) call(ctx context.Context, r request, out any) error {
	session, err := d.sessions.GetSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	if session != nil {
		r.accessToken = session.AccessToken
	}
	return d.client.do(ctx, r, out)
}

func ownerScope(userID, stadiumID string) url.Values {
	return url.Values{
		"id":      {"eq." + stadiumID},
		"user_id": {"eq." + userID},
	}
}

// updateBody はnil以外のフィールドのみを含む更新ボディを組み立てる。
func updateBody(u model.StadiumUpdate) map[string]any {
	body := make(map[string]any)
	if u.Name != nil {
		body["name"] = *u.Name
	}
	if u.City != nil {
		body["city"] = *u.City
	}
	if u.Sport != nil {
		body["sport"] = *u.Sport
	}
	if u.Lat != nil {
		body["lat"] = *u.Lat
	}
	if u.Lng != nil {
		body["lng"] = *u.Lng
	}
	if u.Visited != nil {
		body["visited"] = *u.Visited
	}
	return body
}

// compile-time interface check
var _ backend.DataStore = (*Data)(nil)

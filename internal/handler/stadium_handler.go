package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/fanfootprint/internal/middleware"
	"github.com/hitoshi/fanfootprint/internal/model"
	"github.com/hitoshi/fanfootprint/internal/session"
	"github.com/hitoshi/fanfootprint/internal/view"
)

// StadiumHandler はスタジアム管理とプロフィール表示のHTTPハンドラー。
// すべてのメソッドはRequireAuthの内側で呼び出される前提とする。
type StadiumHandler struct {
	labeler view.Labeler
}

// NewStadiumHandler はStadiumHandlerを生成する。
func NewStadiumHandler(labeler view.Labeler) *StadiumHandler {
	return &StadiumHandler{labeler: labeler}
}

// createStadiumRequest はスタジアム作成リクエストのボディ。
type createStadiumRequest struct {
	Name    string   `json:"name"`
	City    string   `json:"city"`
	Sport   string   `json:"sport"`
	Lat     *float64 `json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Lng     *float64 `json:"lng" validate:"omitempty,gte=-180,lte=180"`
	Visited *bool    `json:"visited"`
}

// updateStadiumRequest はスタジアム部分更新リクエストのボディ。
// 省略したフィールドは変更しない。
type updateStadiumRequest struct {
	Name    *string  `json:"name"`
	City    *string  `json:"city"`
	Sport   *string  `json:"sport"`
	Lat     *float64 `json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Lng     *float64 `json:"lng" validate:"omitempty,gte=-180,lte=180"`
	Visited *bool    `json:"visited"`
}

// stadiumResponse はスタジアム情報のAPIレスポンス。
type stadiumResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	City      string    `json:"city"`
	Sport     string    `json:"sport"`
	Lat       *float64  `json:"lat"`
	Lng       *float64  `json:"lng"`
	Visited   bool      `json:"visited"`
	CreatedAt time.Time `json:"created_at"`
}

// groupResponse はスポーツ別グループのAPIレスポンス。
type groupResponse struct {
	Sport    string            `json:"sport"`
	Stadiums []stadiumResponse `json:"stadiums"`
}

// listViewResponse はリスト表示のAPIレスポンス。
type listViewResponse struct {
	View   view.Mode       `json:"view"`
	Groups []groupResponse `json:"groups"`
}

// mapViewResponse は地図表示のAPIレスポンス。
type mapViewResponse struct {
	View    view.Mode      `json:"view"`
	Config  view.MapConfig `json:"config"`
	Markers []view.Marker  `json:"markers"`
}

// profileResponse はプロフィールページのAPIレスポンス。
type profileResponse struct {
	User   userResponse      `json:"user"`
	Stats  view.Stats        `json:"stats"`
	Recent []stadiumResponse `json:"recent"`
}

// ListStadiums はスタジアム一覧を表示モードに応じた形で返す。
// GET /api/stadiums?view=list|map
func (h *StadiumHandler) ListStadiums(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("view")
	mode, ok := view.ParseMode(raw)
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidViewError(raw))
		return
	}

	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	if mode == view.ModeMap {
		writeJSON(w, http.StatusOK, mapViewResponse{
			View:    mode,
			Config:  view.DefaultMapConfig(),
			Markers: view.Markers(user.Stadiums, h.labeler),
		})
		return
	}

	groups := view.GroupBySport(user.Stadiums)
	resp := listViewResponse{View: mode, Groups: make([]groupResponse, 0, len(groups))}
	for _, g := range groups {
		resp.Groups = append(resp.Groups, groupResponse{
			Sport:    g.Sport,
			Stadiums: toStadiumResponses(g.Stadiums),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateStadium はスタジアムを追加する。
// 名前・都市・スポーツのいずれかが空白の場合はバックエンドを呼ばずに400を返す。
// POST /api/stadiums
func (h *StadiumHandler) CreateStadium(w http.ResponseWriter, r *http.Request) {
	store, ok := currentStore(w, r)
	if !ok {
		return
	}

	var req createStadiumRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	draft := model.StadiumDraft{
		Name:    req.Name,
		City:    req.City,
		Sport:   req.Sport,
		Lat:     req.Lat,
		Lng:     req.Lng,
		Visited: req.Visited,
	}
	if !draft.Complete() {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewIncompleteStadiumError())
		return
	}

	created, err := store.AddStadium(r.Context(), draft)
	if err != nil {
		handleStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toStadiumResponse(*created))
}

// UpdateStadium はスタジアムを部分更新する。
// PATCH /api/stadiums/{id}
func (h *StadiumHandler) UpdateStadium(w http.ResponseWriter, r *http.Request) {
	store, ok := currentStore(w, r)
	if !ok {
		return
	}

	var req updateStadiumRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	update := model.StadiumUpdate{
		Name:    req.Name,
		City:    req.City,
		Sport:   req.Sport,
		Lat:     req.Lat,
		Lng:     req.Lng,
		Visited: req.Visited,
	}
	if update.IsEmpty() {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("更新するフィールドがありません"))
		return
	}
	for _, s := range []*string{update.Name, update.City, update.Sport} {
		if s != nil && strings.TrimSpace(*s) == "" {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewIncompleteStadiumError())
			return
		}
	}

	id := chi.URLParam(r, "id")
	if err := store.UpdateStadium(r.Context(), id, update); err != nil {
		handleStoreError(w, err)
		return
	}

	user := store.User()
	if user != nil {
		for _, s := range user.Stadiums {
			if s.ID == id {
				writeJSON(w, http.StatusOK, toStadiumResponse(s))
				return
			}
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteStadium はスタジアムを削除する。
// DELETE /api/stadiums/{id}
func (h *StadiumHandler) DeleteStadium(w http.ResponseWriter, r *http.Request) {
	store, ok := currentStore(w, r)
	if !ok {
		return
	}

	if err := store.DeleteStadium(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Stats はスタジアムの集計値を返す。
// GET /api/stats
func (h *StadiumHandler) Stats(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, view.ComputeStats(user.Stadiums))
}

// Profile はユーザー情報、集計値、先頭のスタジアムを返す。
// GET /api/profile
func (h *StadiumHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{
		User:   *toUserResponse(user.Identity),
		Stats:  view.ComputeStats(user.Stadiums),
		Recent: toStadiumResponses(view.Recent(user.Stadiums, view.RecentLimit)),
	})
}

// currentStore はリクエストに紐づくストアを返す。存在しない場合は401を書き込む。
func currentStore(w http.ResponseWriter, r *http.Request) (*session.Store, bool) {
	store := middleware.StoreFromContext(r.Context())
	if store == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return nil, false
	}
	return store, true
}

// currentUser はログイン中のユーザーのスナップショットを返す。未ログインの場合は401を書き込む。
func currentUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	store, ok := currentStore(w, r)
	if !ok {
		return nil, false
	}
	user := store.User()
	if user == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return nil, false
	}
	return user, true
}

func toStadiumResponse(s model.Stadium) stadiumResponse {
	return stadiumResponse{
		ID:        s.ID,
		Name:      s.Name,
		City:      s.City,
		Sport:     s.Sport,
		Lat:       s.Lat,
		Lng:       s.Lng,
		Visited:   s.Visited,
		CreatedAt: s.CreatedAt,
	}
}

func toStadiumResponses(stadiums []model.Stadium) []stadiumResponse {
	out := make([]stadiumResponse, 0, len(stadiums))
	for _, s := range stadiums {
		out = append(out, toStadiumResponse(s))
	}
	return out
}

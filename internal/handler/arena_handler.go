package handler

import (
	"net/http"

	"github.com/hitoshi/fanfootprint/internal/arena"
	"github.com/hitoshi/fanfootprint/internal/backend"
	"github.com/hitoshi/fanfootprint/internal/middleware"
	"github.com/hitoshi/fanfootprint/internal/model"
)

// ArenaCatalog はアリーナ検索ハンドラーが必要とする参照データのインターフェース。
type ArenaCatalog interface {
	Search(query string) []arena.Arena
	Find(team string) (arena.Arena, bool)
}

// ArenaHandler はチーム・アリーナ参照データのHTTPハンドラー。
type ArenaHandler struct {
	catalog ArenaCatalog
}

// NewArenaHandler はArenaHandlerを生成する。
func NewArenaHandler(catalog ArenaCatalog) *ArenaHandler {
	return &ArenaHandler{catalog: catalog}
}

// arenaSearchResponse はアリーナ検索のAPIレスポンス。
type arenaSearchResponse struct {
	Arenas []arena.Arena `json:"arenas"`
}

// draftResponse はスタジアム追加フォームの入力済み下書き。
type draftResponse struct {
	Name    string   `json:"name"`
	City    string   `json:"city"`
	Sport   string   `json:"sport"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
	Visited bool     `json:"visited"`
}

// Search はチーム名またはリーグ名でアリーナを検索する。
// GET /api/arenas?q=
func (h *ArenaHandler) Search(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, arenaSearchResponse{
		Arenas: h.catalog.Search(r.URL.Query().Get("q")),
	})
}

// Draft は選択したチームの情報を入力済みのスタジアム下書きを返す。
// GET /api/arenas/draft?team=
func (h *ArenaHandler) Draft(w http.ResponseWriter, r *http.Request) {
	team := r.URL.Query().Get("team")
	a, ok := h.catalog.Find(team)
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewArenaNotFoundError(team))
		return
	}

	d := a.Draft()
	writeJSON(w, http.StatusOK, draftResponse{
		Name:    d.Name,
		City:    d.City,
		Sport:   d.Sport,
		Lat:     d.Lat,
		Lng:     d.Lng,
		Visited: backend.DefaultVisited(d),
	})
}

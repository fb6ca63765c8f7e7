// Package arena はチームと本拠地アリーナの静的な参照データを提供する。
// スタジアム追加フォームの入力補完に使用する。
package arena

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/hitoshi/fanfootprint/internal/model"
)

// MaxResults は検索結果の最大件数。
const MaxResults = 15

//go:embed arenas.json
var defaultData []byte

// Arena はチームと本拠地の参照データ1件を表す。
type Arena struct {
	Team     string  `json:"team"`
	City     string  `json:"city"`
	League   string  `json:"league"`
	Division string  `json:"division"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// Draft はアリーナの情報を入力済みのスタジアム下書きを返す。
// チーム名を名前に、リーグをスポーツに割り当てる。
func (a Arena) Draft() model.StadiumDraft {
	lat, lng := a.Lat, a.Lng
	return model.StadiumDraft{
		Name:  a.Team,
		City:  a.City,
		Sport: a.League,
		Lat:   &lat,
		Lng:   &lng,
	}
}

// Catalog はアリーナ参照データの読み取り専用コレクション。
type Catalog struct {
	arenas []Arena
}

// Parse はJSON配列からCatalogを生成する。
func Parse(data []byte) (*Catalog, error) {
	var arenas []Arena
	if err := json.Unmarshal(data, &arenas); err != nil {
		return nil, fmt.Errorf("failed to parse arena data: %w", err)
	}
	return &Catalog{arenas: arenas}, nil
}

// Default は組み込みの参照データからCatalogを生成する。
func Default() (*Catalog, error) {
	return Parse(defaultData)
}

// Len は参照データの件数を返す。
func (c *Catalog) Len() int {
	return len(c.arenas)
}

// Search はチーム名またはリーグ名にqueryを含むアリーナをデータ順に最大MaxResults件返す。
// 大文字小文字は区別しない。空白のみのqueryは結果なしとする。
func (c *Catalog) Search(query string) []Arena {
	results := []Arena{}
	if strings.TrimSpace(query) == "" {
		return results
	}

	q := strings.ToLower(query)
	for _, a := range c.arenas {
		if strings.Contains(strings.ToLower(a.Team), q) || strings.Contains(strings.ToLower(a.League), q) {
			results = append(results, a)
			if len(results) == MaxResults {
				break
			}
		}
	}
	return results
}

// Find はチーム名が一致するアリーナを返す。大文字小文字は区別しない。
func (c *Catalog) Find(team string) (Arena, bool) {
	for _, a := range c.arenas {
		if strings.EqualFold(a.Team, team) {
			return a, true
		}
	}
	return Arena{}, false
}

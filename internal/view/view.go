// Package view はスタジアム一覧の表示用データ（スポーツ別グループ、地図マーカー、集計）を組み立てる。
package view

import (
	"github.com/hitoshi/fanfootprint/internal/model"
)

// 地図表示の既定値
const (
	DefaultCenterLat = 37.8
	DefaultCenterLng = -96.0
	DefaultZoom      = 4
	MaxZoom          = 18
	TileURL          = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
)

// RecentLimit はプロフィールページに表示するスタジアム数。
const RecentLimit = 6

// Mode は一覧の表示モード。
type Mode string

const (
	ModeList Mode = "list"
	ModeMap  Mode = "map"
)

// ParseMode は文字列を表示モードに変換する。空文字列はリスト表示とする。
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case "", ModeList:
		return ModeList, true
	case ModeMap:
		return ModeMap, true
	}
	return "", false
}

// Group はスポーツごとにまとめたスタジアムの一覧。
type Group struct {
	Sport    string
	Stadiums []model.Stadium
}

// GroupBySport はスタジアムをスポーツごとにまとめる。
// グループは各スポーツが最初に現れた順に並び、グループ内の順序は入力順を保つ。
func GroupBySport(stadiums []model.Stadium) []Group {
	groups := []Group{}
	index := make(map[string]int)
	for _, s := range stadiums {
		i, ok := index[s.Sport]
		if !ok {
			i = len(groups)
			index[s.Sport] = i
			groups = append(groups, Group{Sport: s.Sport})
		}
		groups[i].Stadiums = append(groups[i].Stadiums, s)
	}
	return groups
}

// Marker は地図上の1地点を表す。
type Marker struct {
	StadiumID string  `json:"stadium_id"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Popup     string  `json:"popup"`
}

// MapConfig は地図ウィジェットの初期設定。
type MapConfig struct {
	Center  [2]float64 `json:"center"`
	Zoom    int        `json:"zoom"`
	TileURL string     `json:"tile_url"`
	MaxZoom int        `json:"max_zoom"`
}

// DefaultMapConfig は北米全体を表示する初期設定を返す。
func DefaultMapConfig() MapConfig {
	return MapConfig{
		Center:  [2]float64{DefaultCenterLat, DefaultCenterLng},
		Zoom:    DefaultZoom,
		TileURL: TileURL,
		MaxZoom: MaxZoom,
	}
}

// Labeler はマーカーのポップアップ文字列を生成する。
type Labeler interface {
	PopupLabel(name, city string) string
}

// Markers は緯度・経度の両方を持つスタジアムのみをマーカーに変換する。
func Markers(stadiums []model.Stadium, labeler Labeler) []Marker {
	markers := []Marker{}
	for _, s := range stadiums {
		if !s.HasCoordinates() {
			continue
		}
		markers = append(markers, Marker{
			StadiumID: s.ID,
			Lat:       *s.Lat,
			Lng:       *s.Lng,
			Popup:     labeler.PopupLabel(s.Name, s.City),
		})
	}
	return markers
}

// Stats はスタジアムの集計値。
type Stats struct {
	Total   int `json:"total"`
	Visited int `json:"visited"`
	ToVisit int `json:"to_visit"`
}

// ComputeStats は総数、訪問済み数、未訪問数を集計する。
func ComputeStats(stadiums []model.Stadium) Stats {
	st := Stats{Total: len(stadiums)}
	for _, s := range stadiums {
		if s.Visited {
			st.Visited++
		}
	}
	st.ToVisit = st.Total - st.Visited
	return st
}

// Recent は先頭から最大n件のスタジアムを返す。
func Recent(stadiums []model.Stadium, n int) []model.Stadium {
	if n < 0 {
		n = 0
	}
	if len(stadiums) < n {
		n = len(stadiums)
	}
	out := make([]model.Stadium, n)
	copy(out, stadiums[:n])
	return out
}

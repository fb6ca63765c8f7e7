// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Stadium はユーザーが記録したスタジアム（観戦した会場）を表す。
// ID と CreatedAt はデータストアが採番する。
type Stadium struct {
	ID        string
	UserID    string
	Name      string
	City      string
	Sport     string // 自由入力のカテゴリ（Baseball, Hockey 等）
	Lat       *float64
	Lng       *float64
	Visited   bool
	CreatedAt time.Time
}

// HasCoordinates は緯度・経度の両方が設定されているかを返す。
func (s Stadium) HasCoordinates() bool {
	return s.Lat != nil && s.Lng != nil
}

func (s Stadium) clone() Stadium {
	c := s
	if s.Lat != nil {
		lat := *s.Lat
		c.Lat = &lat
	}
	if s.Lng != nil {
		lng := *s.Lng
		c.Lng = &lng
	}
	return c
}

// StadiumDraft はスタジアム作成時の入力を表す。
// Visitedがnilの場合は訪問済み（true）として作成する。
type StadiumDraft struct {
	Name    string
	City    string
	Sport   string
	Lat     *float64
	Lng     *float64
	Visited *bool
}

// Complete は名前・都市・スポーツの3項目がすべて空白以外で入力されているかを返す。
func (d StadiumDraft) Complete() bool {
	return strings.TrimSpace(d.Name) != "" &&
		strings.TrimSpace(d.City) != "" &&
		strings.TrimSpace(d.Sport) != ""
}

// StadiumUpdate はスタジアムの部分更新を表す。
// nilのフィールドは変更しない。
type StadiumUpdate struct {
	Name    *string
	City    *string
	Sport   *string
	Lat     *float64
	Lng     *float64
	Visited *bool
}

// IsEmpty は更新対象のフィールドが1つもないかを返す。
func (u StadiumUpdate) IsEmpty() bool {
	return u.Name == nil && u.City == nil && u.Sport == nil &&
		u.Lat == nil && u.Lng == nil && u.Visited == nil
}

// ApplyTo は指定されたフィールドのみをスタジアムにマージする。
func (u StadiumUpdate) ApplyTo(s *Stadium) {
	if u.Name != nil {
		s.Name = *u.Name
	}
	if u.City != nil {
		s.City = *u.City
	}
	if u.Sport != nil {
		s.Sport = *u.Sport
	}
	if u.Lat != nil {
		lat := *u.Lat
		s.Lat = &lat
	}
	if u.Lng != nil {
		lng := *u.Lng
		s.Lng = &lng
	}
	if u.Visited != nil {
		s.Visited = *u.Visited
	}
}

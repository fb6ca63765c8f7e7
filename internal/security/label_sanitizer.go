// Package security はアプリケーションのセキュリティ機能を提供する。
//
// LabelSanitizer はユーザーが入力したスタジアム名・都市名を
// 地図マーカーのポップアップHTMLに埋め込む前にエスケープする。
// bluemondayのポリシーで、ポップアップの書式に使うタグ以外を通過させない。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// LabelSanitizer はマーカーのポップアップラベルを生成するインターフェース。
type LabelSanitizer interface {
	// PopupLabel は名前を太字、都市を改行後に並べたポップアップHTMLを返す。
	// 入力中のタグはすべて除去またはエスケープされる。
	PopupLabel(name, city string) string
}

// labelSanitizer はLabelSanitizerの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type labelSanitizer struct {
	text   *bluemonday.Policy
	markup *bluemonday.Policy
}

// NewLabelSanitizer はLabelSanitizerの新しいインスタンスを生成する。
// ポリシーの内容:
//   - 入力値: タグを一切許可しない（StrictPolicy）
//   - 組み立て後: b, br のみ許可
func NewLabelSanitizer() *labelSanitizer {
	markup := bluemonday.NewPolicy()
	markup.AllowElements("b", "br")

	return &labelSanitizer{
		text:   bluemonday.StrictPolicy(),
		markup: markup,
	}
}

// PopupLabel はポップアップHTMLを生成する。
func (s *labelSanitizer) PopupLabel(name, city string) string {
	return s.markup.Sanitize("<b>" + s.text.Sanitize(name) + "</b><br>" + s.text.Sanitize(city))
}

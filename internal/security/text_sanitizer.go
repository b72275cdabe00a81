package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はフィード由来テキストのサニタイズ機能のインターフェースを定義する。
// タイトルやカテゴリはフィード提供者が管理する値であり、
// HTMLタグやスクリプトが混入している可能性があるため、保存前に平文化する。
type TextSanitizerService interface {
	// SanitizeText は入力からすべてのHTMLタグを除去し、
	// エンティティをデコードした平文を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのStrictPolicy（全タグ除去）を保持し、スレッドセーフに動作する。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText は入力からすべてのHTMLタグを除去した平文を返す。
// bluemondayはタグ除去後にエンティティをエスケープした状態で返すため、
// 表示用の平文として扱えるようアンエスケープする。
func (s *textSanitizer) SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}

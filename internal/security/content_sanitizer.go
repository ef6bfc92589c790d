// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizer はブログ本文やコメントなどユーザーが投稿したHTMLをサニタイズし、
// 保存されたコンテンツを表示する他のユーザーをXSSから保護する。
// bluemondayの許可リストベースのポリシーで、安全なタグと属性のみを通過させる。
package security

import (
	"html"
	"net/url"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/moreblogs/internal/model"
)

// リッチテキストとして扱うブログのフィールド。
var RichTextFields = []string{"long_description"}

// プレーンテキストとして扱うフィールド。タグはすべて除去する。
var PlainTextFields = []string{"title", "short_description", "category", "author", "comment"}

// ContentSanitizerService はHTMLコンテンツのサニタイズ機能のインターフェースを定義する。
// ブログ・コメントの保存前に使用される。
type ContentSanitizerService interface {
	// Sanitize はリッチテキストをサニタイズして安全なHTMLを返す。
	// 許可タグ（p, br, a, ul, ol, li, blockquote, pre, code, strong, em, u, s, h1〜h4, img）のみを通過させ、
	// script, iframe, styleタグおよびon*イベント属性を除去する。
	// imgタグのsrc属性はhttpsスキームのみ許可される。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string

	// StripTags はすべてのタグを除去したテキストを返す。
	StripTags(raw string) string

	// SanitizeDocument はドキュメントのリッチテキスト・プレーンテキストフィールドを
	// サニタイズした新しいドキュメントを返す。文字列でないフィールドは変更しない。
	SanitizeDocument(doc model.Document) model.Document
}

// ContentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type ContentSanitizer struct {
	rich  *bluemonday.Policy
	plain *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerの新しいインスタンスを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, a, ul, ol, li, blockquote, pre, code, strong, em, u, s, h1〜h4, img
//   - 禁止タグ: script, iframe, style および全てのon*イベント属性
//   - imgのsrc属性: httpsスキームのみ許可
//   - aタグ: target="_blank" と rel="noopener noreferrer" を自動付与
func NewContentSanitizer() *ContentSanitizer {
	p := bluemonday.NewPolicy()

	// script, iframe, style等は許可リストに含めないことで除去される
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em", "u", "s",
		"h1", "h2", "h3", "h4",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src").OnElements("img")
	p.AllowAttrs("alt").OnElements("img")
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return true
	})

	return &ContentSanitizer{
		rich:  p,
		plain: bluemonday.StrictPolicy(),
	}
}

// Sanitize はリッチテキストをサニタイズして安全なHTMLを返す。
func (s *ContentSanitizer) Sanitize(rawHTML string) string {
	return s.rich.Sanitize(rawHTML)
}

// StripTags はすべてのタグを除去したテキストを返す。
// bluemondayがエスケープした文字実体は元に戻し、プレーンテキストとして保存する。
func (s *ContentSanitizer) StripTags(raw string) string {
	return html.UnescapeString(s.plain.Sanitize(raw))
}

// SanitizeDocument はドキュメントの既知のテキストフィールドをサニタイズする。
func (s *ContentSanitizer) SanitizeDocument(doc model.Document) model.Document {
	out := doc.Without()
	for _, f := range RichTextFields {
		if v, ok := out[f].(string); ok {
			out[f] = s.Sanitize(v)
		}
	}
	for _, f := range PlainTextFields {
		if v, ok := out[f].(string); ok {
			out[f] = s.StripTags(v)
		}
	}
	return out
}

var _ ContentSanitizerService = (*ContentSanitizer)(nil)

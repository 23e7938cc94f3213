// Package security はキャッシュ前の投稿HTMLのサニタイズと、
// 外部ホストへのリクエストに対するSSRF防止を提供する。
package security

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// ContentSanitizer は投稿HTMLのサニタイズ機能のインターフェース。
// Mastodonから受け取った content と編集履歴の各版はキャッシュ前にここを通す。
type ContentSanitizer interface {
	// Sanitize は許可リストに含まれるタグと属性だけを残したHTMLを返す。
	Sanitize(rawHTML string) string
	// PlainText はHTMLからタグを除いたテキストを返す。段落と改行は "\n" になる。
	PlainText(rawHTML string) string
}

// mastodonClassPattern はMastodonのマイクロフォーマットで使われるclass値。
// メンション・ハッシュタグ・URL省略表示の見た目に必要なものだけ残す。
var mastodonClassPattern = regexp.MustCompile(`^(?:(?:h-card|u-url|mention|hashtag|invisible|ellipsis|quote-inline)\s*)+$`)

// StatusSanitizer は bluemonday のポリシーを保持する ContentSanitizer 実装。
// ポリシーは生成後に変更しないため、複数ゴルーチンから同時に使える。
type StatusSanitizer struct {
	policy *bluemonday.Policy
}

var _ ContentSanitizer = (*StatusSanitizer)(nil)

// NewContentSanitizer は投稿HTML向けのポリシーを構築する。
//   - 許可タグ: p, br, span, a, del, s, pre, code, em, strong, b, i, u, ul, ol, li, blockquote
//   - a の href は http/https のみ。target="_blank" と rel="noreferrer" を付与する
//   - class は a と span のマイクロフォーマット値のみ
func NewContentSanitizer() *StatusSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "span", "del", "s", "pre", "code",
		"em", "strong", "b", "i", "u",
		"ul", "ol", "li", "blockquote",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("class").Matching(mastodonClassPattern).OnElements("a", "span")
	p.AllowURLSchemes("http", "https")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &StatusSanitizer{policy: p}
}

// Sanitize はHTMLをサニタイズする。空文字列には空文字列を返す。
func (s *StatusSanitizer) Sanitize(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	return s.policy.Sanitize(rawHTML)
}

// PlainText はHTMLをテキストに変換する。
// <br> と段落の終わりを改行にし、文字参照はデコードする。
func (s *StatusSanitizer) PlainText(rawHTML string) string {
	return HTMLToText(rawHTML)
}

// HTMLToText はHTMLフラグメントをテキストに変換する。
// 壊れたマークアップでもトークナイザが読める範囲まで変換する。
func HTMLToText(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(rawHTML))
	paragraphs := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimRight(b.String(), "\n")
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "br":
				b.WriteByte('\n')
			case "p":
				if paragraphs > 0 {
					b.WriteString("\n\n")
				}
				paragraphs++
			}
		}
	}
}

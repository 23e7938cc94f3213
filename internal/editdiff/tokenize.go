package editdiff

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// ErrMalformedMarkup は開始タグと終了タグの対応が取れないマークアップを表す。
var ErrMalformedMarkup = errors.New("editdiff: malformed markup")

type tokenKind int

const (
	tokenStart tokenKind = iota
	tokenEnd
	tokenVoid
	tokenText
)

// token は差分計算の単位。テキストは単語と空白に分割される。
// key は要素の入れ子（タグパス）を含み、同じ文字列でも別の要素内にあれば一致しない。
type token struct {
	kind tokenKind
	key  string
	raw  string // 出力するマークアップ。HTMLでは入力のバイト列をそのまま保持する
}

// voidElements は終了タグを持たない要素。
var voidElements = map[string]bool{
	"br": true, "hr": true, "img": true, "wbr": true, "input": true, "source": true,
}

// tokenize はHTML断片をトークン列に変換する。
func tokenize(fragment string) ([]token, error) {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var (
		tokens []token
		stack  []string
	)
	path := func() string { return strings.Join(stack, "/") }

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, fmt.Errorf("マークアップの解析に失敗しました: %w", err)
			}
			if len(stack) > 0 {
				return nil, fmt.Errorf("閉じられていない要素があります (%s): %w", path(), ErrMalformedMarkup)
			}
			return tokens, nil

		case html.StartTagToken, html.SelfClosingTagToken:
			// Raw は次の Next で上書きされるため先にコピーする
			raw := string(z.Raw())
			name := z.Token().Data
			if tt == html.SelfClosingTagToken || voidElements[name] {
				tokens = append(tokens, token{kind: tokenVoid, key: "v:" + path() + "/" + name, raw: raw})
				continue
			}
			tokens = append(tokens, token{kind: tokenStart, key: "s:" + path() + "/" + name, raw: raw})
			stack = append(stack, name)

		case html.EndTagToken:
			raw := string(z.Raw())
			name := z.Token().Data
			if voidElements[name] {
				continue
			}
			if len(stack) == 0 || stack[len(stack)-1] != name {
				return nil, fmt.Errorf("対応しない終了タグ </%s>: %w", name, ErrMalformedMarkup)
			}
			stack = stack[:len(stack)-1]
			tokens = append(tokens, token{kind: tokenEnd, key: "e:" + path() + "/" + name, raw: raw})

		case html.TextToken:
			// 比較は実体参照を展開した文字列で行い、出力は元の表記のまま使う
			p := path()
			for _, w := range splitWords(string(z.Raw())) {
				tokens = append(tokens, token{kind: tokenText, key: "t:" + p + ":" + html.UnescapeString(w), raw: w})
			}
		}
	}
}

// tokenizeText はプレーンテキスト（CW文など）をトークン列に変換する。
func tokenizeText(text string) []token {
	var tokens []token
	for _, w := range splitWords(text) {
		tokens = append(tokens, token{kind: tokenText, key: "t::" + w, raw: html.EscapeString(w)})
	}
	return tokens
}

// splitWords は文字列を単語と空白の連続に分割する。連結すると元の文字列に戻る。
func splitWords(s string) []string {
	var (
		out   []string
		start int
	)
	prevSpace := false
	for i, r := range s {
		space := unicode.IsSpace(r)
		if i > start && space != prevSpace {
			out = append(out, s[start:i])
			start = i
		}
		prevSpace = space
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

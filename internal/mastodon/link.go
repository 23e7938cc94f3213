package mastodon

import (
	"net/url"
	"strings"
)

// Cursor はLinkヘッダーから取り出したページングパラメータ。
type Cursor struct {
	MaxID   string
	MinID   string
	SinceID string
	Offset  string
}

// IsZero はカーソルが空（次のページが無い）かを返す。
func (c Cursor) IsZero() bool {
	return c == Cursor{}
}

// Links はレスポンスの Link ヘッダーが示す前後のページ。
type Links struct {
	Next Cursor
	Prev Cursor
}

// ParseLinkHeader は RFC 8288 形式の Link ヘッダーを解析する。
// 解釈できない要素は読み飛ばし、エラーは返さない。
// rel="next" が無い場合 Next は空になり、呼び出し側はページングの終端として扱う。
func ParseLinkHeader(header string) Links {
	var links Links
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(part, "<") {
			continue
		}
		end := strings.Index(part, ">")
		if end < 0 {
			continue
		}
		target, err := url.Parse(part[1:end])
		if err != nil {
			continue
		}
		cursor := cursorFromQuery(target.Query())
		if cursor.IsZero() {
			continue
		}

		for _, param := range strings.Split(part[end+1:], ";") {
			key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
			if !ok || !strings.EqualFold(strings.TrimSpace(key), "rel") {
				continue
			}
			for _, rel := range strings.Fields(strings.Trim(strings.TrimSpace(value), `"`)) {
				switch strings.ToLower(rel) {
				case "next":
					links.Next = cursor
				case "prev", "previous":
					links.Prev = cursor
				}
			}
		}
	}
	return links
}

func cursorFromQuery(q url.Values) Cursor {
	return Cursor{
		MaxID:   q.Get("max_id"),
		MinID:   q.Get("min_id"),
		SinceID: q.Get("since_id"),
		Offset:  q.Get("offset"),
	}
}

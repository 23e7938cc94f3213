package mastodon

import "testing"

// TestParseLinkHeader はLinkヘッダーから前後のカーソルを取り出せることを検証する。
func TestParseLinkHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   Links
	}{
		{
			name:   "nextとprev",
			header: `<https://m.example/api/v1/timelines/home?max_id=100>; rel="next", <https://m.example/api/v1/timelines/home?min_id=200>; rel="prev"`,
			want:   Links{Next: Cursor{MaxID: "100"}, Prev: Cursor{MinID: "200"}},
		},
		{
			name:   "nextのみ",
			header: `<https://m.example/api/v1/notifications?max_id=100>; rel="next"`,
			want:   Links{Next: Cursor{MaxID: "100"}},
		},
		{
			name:   "引用符なしのrel",
			header: `<https://m.example/api/v1/scheduled_statuses?max_id=7&limit=20>; rel=next`,
			want:   Links{Next: Cursor{MaxID: "7"}},
		},
		{
			name:   "since_idとoffset",
			header: `<https://m.example/x?since_id=5>; rel="prev", <https://m.example/x?offset=40>; rel="next"`,
			want:   Links{Next: Cursor{Offset: "40"}, Prev: Cursor{SinceID: "5"}},
		},
		{
			name:   "空",
			header: "",
			want:   Links{},
		},
		{
			name:   "壊れた値",
			header: `garbage; rel="next", <no-close; rel="prev"`,
			want:   Links{},
		},
		{
			name:   "カーソルを含まないURL",
			header: `<https://m.example/api/v1/timelines/home>; rel="next"`,
			want:   Links{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLinkHeader(tt.header)
			if got != tt.want {
				t.Errorf("ParseLinkHeader(%q) = %+v, want %+v", tt.header, got, tt.want)
			}
		})
	}
}

// TestClassifyHTTPStatus はステータスコードの分類を検証する。
func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		code int
		want StatusClass
	}{
		{200, StatusOK},
		{204, StatusOK},
		{401, StatusAuth},
		{403, StatusAuth},
		{404, StatusNotFound},
		{410, StatusNotFound},
		{422, StatusClientError},
		{429, StatusRateLimited},
		{500, StatusServerError},
		{503, StatusServerError},
	}
	for _, tt := range tests {
		if got := ClassifyHTTPStatus(tt.code); got != tt.want {
			t.Errorf("ClassifyHTTPStatus(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestAppendParams(t *testing.T) {
	tests := []struct {
		name   string
		next   Cursor
		oldest string
		want   PageParams
	}{
		{"カーソルなし", Cursor{}, "105", PageParams{MaxID: "105", Limit: 20}},
		{"カーソルが最古IDより古い", Cursor{MaxID: "100"}, "105", PageParams{MaxID: "100", Limit: 20}},
		{"カーソルが最古IDと同じ", Cursor{MaxID: "105"}, "105", PageParams{MaxID: "105", Limit: 20}},
		{"キャッシュの方が古い", Cursor{MaxID: "105"}, "50", PageParams{MaxID: "50", Limit: 20}},
		{"キャッシュが空", Cursor{MaxID: "100"}, "", PageParams{MaxID: "100", Limit: 20}},
		{"桁数の多いIDは新しい", Cursor{MaxID: "1000"}, "999", PageParams{MaxID: "999", Limit: 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AppendParams(tt.next, tt.oldest, 20); got != tt.want {
				t.Errorf("AppendParams() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

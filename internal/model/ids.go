package model

// サーバー発行のIDはSnowflake形式の文字列で、数値として比較すると時系列順になる。
// ローカルでは数値に変換せず、「長さ→辞書順」の比較で順序を判定する。
// プレースホルダーのIDは実在IDの直前・直後の値として IncID / DecID で生成する。

const (
	idMinChar = '0'
	idMaxChar = 'z'
)

// CompareIDs は2つのIDの順序を比較する。
// a < b なら負、a == b なら0、a > b なら正を返す。
func CompareIDs(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// IDLess は a が b より古い（小さい）IDかを返す。
func IDLess(a, b string) bool {
	return CompareIDs(a, b) < 0
}

// IncID は順序上 id の直後にあたるIDを返す。
// 各桁は '0'〜'z' の範囲で繰り上がる。
func IncID(id string) string {
	b := []byte(id)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < idMaxChar {
			b[i]++
			return string(b)
		}
		b[i] = idMinChar
	}
	out := make([]byte, len(b)+1)
	out[0] = '1'
	for i := 1; i < len(out); i++ {
		out[i] = idMinChar
	}
	return string(out)
}

// DecID は順序上 id の直前にあたるIDを返す。
// 先頭桁まで繰り下がった場合は1桁短いIDになる。
func DecID(id string) string {
	if id == "" {
		return id
	}
	b := []byte(id)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] > idMinChar {
			b[i]--
			return string(b)
		}
		b[i] = idMaxChar
	}
	return string(b[1:])
}

// GapAfterPage は未取得区間を1ページ分読み込んだ後に残るギャップのプレースホルダーIDを返す。
// ページが満杯で、取得した最古IDと sinceID の間にまだIDが入りうる場合のみ空以外を返す。
func GapAfterPage(ids []string, pageSize int, sinceID string) string {
	if len(ids) == 0 || len(ids) < pageSize || sinceID == "" {
		return ""
	}
	oldest := ids[0]
	for _, id := range ids[1:] {
		if IDLess(id, oldest) {
			oldest = id
		}
	}
	gap := DecID(oldest)
	if CompareIDs(gap, sinceID) <= 0 {
		return ""
	}
	return gap
}

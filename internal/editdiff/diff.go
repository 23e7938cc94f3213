package editdiff

import (
	"errors"
	"strings"
)

// maxDiffCells はLCSの表の大きさの上限。超える場合は差分を作らない。
const maxDiffCells = 1 << 22

var errTooLarge = errors.New("editdiff: content too large to diff")

type opKind int

const (
	opEqual opKind = iota
	opInsert
	opDelete
)

type op struct {
	kind opKind
	tok  token
}

// diffTokens は older から newer への編集操作の列を返す。
// 同じ位置では削除を挿入より先に並べる。
func diffTokens(older, newer []token) ([]op, error) {
	n, m := len(older), len(newer)
	if (n+1)*(m+1) > maxDiffCells {
		return nil, errTooLarge
	}

	// lcs[i][j] は older[i:] と newer[j:] の最長共通部分列の長さ
	width := m + 1
	lcs := make([]int32, (n+1)*width)
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if older[i].key == newer[j].key {
				lcs[i*width+j] = lcs[(i+1)*width+j+1] + 1
			} else {
				lcs[i*width+j] = max(lcs[(i+1)*width+j], lcs[i*width+j+1])
			}
		}
	}

	ops := make([]op, 0, n+m)
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case older[i].key == newer[j].key:
			ops = append(ops, op{kind: opEqual, tok: newer[j]})
			i++
			j++
		case lcs[(i+1)*width+j] >= lcs[i*width+j+1]:
			ops = append(ops, op{kind: opDelete, tok: older[i]})
			i++
		default:
			ops = append(ops, op{kind: opInsert, tok: newer[j]})
			j++
		}
	}
	for ; i < n; i++ {
		ops = append(ops, op{kind: opDelete, tok: older[i]})
	}
	for ; j < m; j++ {
		ops = append(ops, op{kind: opInsert, tok: newer[j]})
	}
	return ops, nil
}

// renderOps は編集操作の列をマークアップにする。
// タグは新しい版のものだけを出力し、挿入されたテキストを <ins>、削除されたテキストを <del> で囲む。
// 囲みはタグをまたがないため、出力は常に整形式になる。
func renderOps(ops []op) string {
	var (
		b    strings.Builder
		open opKind = opEqual
	)
	closeRun := func() {
		switch open {
		case opInsert:
			b.WriteString("</ins>")
		case opDelete:
			b.WriteString("</del>")
		}
		open = opEqual
	}
	openRun := func(kind opKind) {
		if open == kind {
			return
		}
		closeRun()
		switch kind {
		case opInsert:
			b.WriteString("<ins>")
		case opDelete:
			b.WriteString("<del>")
		}
		open = kind
	}

	for _, o := range ops {
		if o.tok.kind != tokenText {
			if o.kind == opDelete {
				continue
			}
			closeRun()
			b.WriteString(o.tok.raw)
			continue
		}
		openRun(o.kind)
		b.WriteString(o.tok.raw)
	}
	closeRun()
	return b.String()
}

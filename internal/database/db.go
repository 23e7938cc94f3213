package database

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// defaultPragmas はすべての接続に適用するSQLiteのプラグマ。
// 外部キーによるカスケード削除とWALによる読み書きの並行実行を有効にする。
// トランザクションはIMMEDIATEで開始し、書き込みロックの取得をbusy_timeoutで待たせる。
const defaultPragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"

// DSN はファイルパスからSQLiteの接続文字列を組み立てる。
// パスにクエリ文字列が含まれている場合はプラグマを追記する。
func DSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "file:" + path + sep + defaultPragmas
}

// Open はSQLiteデータベースファイルを開く。
// 1つのデータベースファイルをログイン中の全アカウントで共有し、各行はaccount_idで区切る。
// sql.Openは接続を試行しないため、実際の接続確認にはdb.Ping()を使用すること。
func Open(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("failed to open database: empty path")
	}

	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return db, nil
}

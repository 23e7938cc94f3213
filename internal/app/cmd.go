package app

import (
	"fmt"
	"io"
	"strings"
)

// Command は mastosync の起動モードを表す。
type Command string

const (
	// CommandServe はループバックAPIとバックグラウンド同期を起動する。
	CommandServe Command = "serve"
	// CommandWorker はAPIを起動せずに同期とキャッシュ削除だけを実行する。
	CommandWorker Command = "worker"
	// CommandMigrate はキャッシュDBのマイグレーションだけを実行する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のserveプロセスの /health を確認する。
	CommandHealthcheck Command = "healthcheck"
	// CommandHelp は使い方を表示する。
	CommandHelp Command = "help"
)

// commands はサブコマンドと説明の一覧。usage の表示順でもある。
var commands = []struct {
	cmd  Command
	desc string
}{
	{CommandServe, "ループバックAPIを起動し、タイムラインと通知を定期同期する（既定）"},
	{CommandWorker, "APIを起動せずに同期とキャッシュ削除だけを実行する"},
	{CommandMigrate, "キャッシュDBのマイグレーションを適用する"},
	{CommandHealthcheck, "SERVER_ADDR で起動中のserveの /health を確認する"},
	{CommandHelp, "この使い方を表示する"},
}

// ParseCommand はコマンドライン引数の先頭からサブコマンドを解析する。
// 引数が空の場合はCommandServeを返し、未知のサブコマンドはエラーにする。
// 2番目以降の引数は無視する。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}

	name := strings.TrimLeft(args[0], "-")
	if name == "h" {
		return CommandHelp, nil
	}
	for _, c := range commands {
		if string(c.cmd) == name {
			return c.cmd, nil
		}
	}
	return "", fmt.Errorf("unknown command %q", args[0])
}

// writeUsage はサブコマンドの一覧を書き出す。
func writeUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: mastosync [command]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-12s %s\n", c.cmd, c.desc)
	}
}

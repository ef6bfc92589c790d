package app

import (
	"errors"
	"fmt"
	"strings"
)

// Command はmoreblogsバイナリのサブコマンド。
type Command string

const (
	// CommandServe はREST APIを提供する（引数省略時の既定）。
	CommandServe Command = "serve"
	// CommandWorker はカテゴリ件数を定期的に再計算する。
	CommandWorker Command = "worker"
	// CommandMigrate は未適用のマイグレーションを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のサーバーの/healthを確認する。
	// distrolessイメージにはcurlがないため、DockerのHEALTHCHECKから呼ぶ。
	CommandHealthcheck Command = "healthcheck"
)

// ErrUnknownCommand は未定義のサブコマンドが指定された場合のエラー。
var ErrUnknownCommand = errors.New("unknown command")

// commands はUsageの表示順を兼ねる。
var commands = []struct {
	cmd  Command
	desc string
}{
	{CommandServe, "start the REST API server (default)"},
	{CommandWorker, "recount blogs per category periodically"},
	{CommandMigrate, "apply database migrations and exit"},
	{CommandHealthcheck, "probe /health of a running server"},
}

// ParseCommand はos.Args[1:]の先頭からサブコマンドを決める。
// 2つ目以降の引数は無視する。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 || args[0] == "" {
		return CommandServe, nil
	}
	for _, c := range commands {
		if string(c.cmd) == args[0] {
			return c.cmd, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownCommand, args[0])
}

// Usage はサブコマンドの一覧を返す。
func Usage() string {
	var b strings.Builder
	b.WriteString("usage: moreblogs [command]\n\ncommands:\n")
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-12s %s\n", c.cmd, c.desc)
	}
	return b.String()
}

// Package logger はslogベースのJSON構造化ログを初期化する。
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Setup は指定レベル以上を出力するJSON構造化ログのslog.Loggerを生成して返す。
func Setup(w io.Writer, level slog.Leveler) *slog.Logger {
	if level == nil {
		level = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler).With(slog.String("service", "moreblogs"))
}

// SetupDefault はJSON構造化ログをグローバルロガーとして設定し、
// 後からレベルを変更できるLevelVarを返す。
// 設定読み込み前にログを使えるよう、初期レベルはINFOとする。
// wがnilの場合はos.Stdoutに出力する。
func SetupDefault(w io.Writer) *slog.LevelVar {
	if w == nil {
		w = os.Stdout
	}
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)
	slog.SetDefault(Setup(w, level))
	return level
}

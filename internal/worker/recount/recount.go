// Package recount はカテゴリごとのブログ数を定期的に再計算するジョブを提供する。
// ブログ書き込み時の同期は失敗しても無視されるため、このジョブで最終的に一致させる。
package recount

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Synchronizer はすべてのカテゴリを同期するインターフェース。
// category.Synchronizerが実装する。
type Synchronizer interface {
	SyncAll(ctx context.Context) (synced int, failed int, err error)
}

// Job はcategoriesコレクションの全カテゴリのtotalBlogsを再計算するジョブ。
// 何度実行しても結果は同じになる。
type Job struct {
	syncer Synchronizer
	logger *slog.Logger
}

// NewJob は新しいJobを生成する。
func NewJob(syncer Synchronizer, logger *slog.Logger) *Job {
	return &Job{syncer: syncer, logger: logger}
}

// Run は全カテゴリを1回同期する。
// 個々のカテゴリの失敗はログに記録して続行し、カテゴリ一覧の取得失敗のみエラーを返す。
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()

	synced, failed, err := j.syncer.SyncAll(ctx)
	if err != nil {
		j.logger.Error("カテゴリ件数の再計算に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("synced", synced),
		)
		return fmt.Errorf("カテゴリ件数の再計算に失敗: %w", err)
	}

	j.logger.Info("カテゴリ件数の再計算が完了しました",
		slog.Int("synced", synced),
		slog.Int("failed", failed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は起動直後に1回、その後intervalごとにRunを実行する。
// ctxがキャンセルされるまでブロックする。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("カテゴリ件数の再計算ジョブを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行。失敗はRun内でログ済みのため、次のティックまで待つ
	_ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("カテゴリ件数の再計算ジョブを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}

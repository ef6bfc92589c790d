// Package category はカテゴリごとのブログ数（非正規化カウンタ）の同期を提供する。
package category

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/moreblogs/internal/repository"
)

// ErrSyncFailed はカテゴリ件数の集計または書き込みに失敗した場合のエラー。
var ErrSyncFailed = errors.New("category sync failed")

// SyncRecorder は同期結果を記録するインターフェース。metrics.Collectorが実装する。
type SyncRecorder interface {
	RecordCategorySync(success bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordCategorySync(bool) {}

// Synchronizer はblogsコレクションからカテゴリのブログ数を再計算し、
// categoriesコレクションのtotalBlogsへ書き込む。
// 同一カテゴリへの並行な同期は後勝ちとなる。
type Synchronizer struct {
	repo     repository.CategoryCountRepository
	recorder SyncRecorder
}

// NewSynchronizer はSynchronizerを生成する。recorderがnilの場合は記録しない。
func NewSynchronizer(repo repository.CategoryCountRepository, recorder SyncRecorder) *Synchronizer {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Synchronizer{repo: repo, recorder: recorder}
}

// Sync は指定カテゴリのブログ数を数え、カテゴリレコードのtotalBlogsを上書きする。
// 該当ブログがない場合は0を書き込む。カテゴリレコードが存在しない場合は作成しない。
func (s *Synchronizer) Sync(ctx context.Context, name string) error {
	total, err := s.repo.CountBlogsByCategory(ctx, name)
	if err != nil {
		s.recorder.RecordCategorySync(false)
		return fmt.Errorf("%w: count %q: %v", ErrSyncFailed, name, err)
	}

	updated, err := s.repo.SetTotalBlogs(ctx, name, total)
	if err != nil {
		s.recorder.RecordCategorySync(false)
		return fmt.Errorf("%w: update %q: %v", ErrSyncFailed, name, err)
	}

	s.recorder.RecordCategorySync(true)
	slog.Debug("category count synchronized",
		slog.String("category", name),
		slog.Int64("total_blogs", total),
		slog.Int64("updated_records", updated),
	)
	return nil
}

// SyncAll はcategoriesコレクションに存在するすべてのカテゴリを同期する。
// 個々のカテゴリの失敗では中断せず、失敗件数を返す。
func (s *Synchronizer) SyncAll(ctx context.Context) (synced int, failed int, err error) {
	names, err := s.repo.ListCategoryNames(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: list categories: %v", ErrSyncFailed, err)
	}

	for _, name := range names {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		if err := s.Sync(ctx, name); err != nil {
			failed++
			slog.Error("failed to synchronize category",
				slog.String("category", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		synced++
	}
	return synced, failed, nil
}

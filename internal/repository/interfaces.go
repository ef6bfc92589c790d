// Package repository はドキュメントコレクションの永続化インターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hitoshi/moreblogs/internal/model"
	"github.com/hitoshi/moreblogs/internal/query"
)

// ErrInvalidID はドキュメントIDがUUID形式でない場合のエラー。
var ErrInvalidID = errors.New("invalid document id")

// DB はリポジトリが必要とするコネクションプールの最小インターフェース。
// *pgxpool.Pool と pgxmock.PgxPoolIface が実装する。
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Collection はドキュメントを格納するコレクション（テーブル）名。
type Collection string

const (
	CollectionBlogs      Collection = "blogs"
	CollectionComments   Collection = "comments"
	CollectionWishlist   Collection = "wishlist"
	CollectionCategories Collection = "categories"
)

// UpdateResult は1件更新の結果。
type UpdateResult struct {
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}

// DocumentRepository は1つのコレクションに対するドキュメント操作のインターフェース。
type DocumentRepository interface {
	// Find はQueryに一致するドキュメントを返す。一致しない場合は空スライスを返す。
	Find(ctx context.Context, q *query.Query) ([]model.Document, error)

	// FindByID は指定IDのドキュメントを取得する。見つからない場合はnilを返す。
	// IDがUUID形式でない場合はErrInvalidIDを返す。
	FindByID(ctx context.Context, id string) (model.Document, error)

	// Count はFilterに一致するドキュメント数を返す。
	Count(ctx context.Context, f query.Filter) (int64, error)

	// Insert はドキュメントを新しいIDで保存し、そのIDを返す。
	// クライアントが指定した _id は無視する。
	Insert(ctx context.Context, doc model.Document) (string, error)

	// UpdateOne は指定IDかつFilterに一致するドキュメントにfieldsをシャローマージする。
	// 一致するドキュメントがない場合は作成しない。
	UpdateOne(ctx context.Context, id string, f query.Filter, fields model.Document) (UpdateResult, error)

	// DeleteByID は指定IDのドキュメントを削除し、削除件数を返す。
	DeleteByID(ctx context.Context, id string) (int64, error)
}

// CategoryCountRepository はカテゴリごとのブログ数（非正規化カウンタ）の集計と書き込みを行う。
type CategoryCountRepository interface {
	// CountBlogsByCategory はcategoryが一致するブログ数を数える。
	CountBlogsByCategory(ctx context.Context, category string) (int64, error)

	// SetTotalBlogs はカテゴリレコードのtotalBlogsを上書きし、更新件数を返す。
	// レコードが存在しない場合は作成せず0を返す。
	SetTotalBlogs(ctx context.Context, category string, total int64) (int64, error)

	// ListCategoryNames はcategoriesコレクションに存在するカテゴリ名を返す。
	ListCategoryNames(ctx context.Context) ([]string, error)
}

package repository

import (
	"context"
	"fmt"
)

// PostgresCategoryCountRepo はblogsとcategoriesの2テーブルにまたがってカテゴリ件数を扱う。
type PostgresCategoryCountRepo struct {
	db DB
}

// NewPostgresCategoryCountRepo はPostgresCategoryCountRepoを生成する。
func NewPostgresCategoryCountRepo(db DB) *PostgresCategoryCountRepo {
	return &PostgresCategoryCountRepo{db: db}
}

// CountBlogsByCategory はcategoryが一致するブログ数を数える。
func (r *PostgresCategoryCountRepo) CountBlogsByCategory(ctx context.Context, category string) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM blogs WHERE doc->>'category' = $1`,
		category,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count blogs by category: %w", err)
	}
	return n, nil
}

// SetTotalBlogs はカテゴリレコードのtotalBlogsを上書きする。
// 同名のカテゴリレコードが複数ある場合はすべて更新する。
func (r *PostgresCategoryCountRepo) SetTotalBlogs(ctx context.Context, category string, total int64) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE categories
		 SET doc = jsonb_set(doc, '{totalBlogs}', to_jsonb($2::bigint)), updated_at = now()
		 WHERE doc->>'category' = $1`,
		category, total,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to set category total: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListCategoryNames はcategoriesコレクションに存在するカテゴリ名を名前順で返す。
func (r *PostgresCategoryCountRepo) ListCategoryNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT doc->>'category' FROM categories
		 WHERE doc->>'category' IS NOT NULL AND doc->>'category' <> ''
		 ORDER BY 1`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}
	return names, nil
}

// compile-time interface check
var _ CategoryCountRepository = (*PostgresCategoryCountRepo)(nil)

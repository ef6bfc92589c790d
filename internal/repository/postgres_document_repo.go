package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hitoshi/moreblogs/internal/model"
	"github.com/hitoshi/moreblogs/internal/query"
)

// pgcodeInvalidRegularExpression はPostgreSQLが $regex のパターンを解釈できない場合のSQLSTATE。
// Goのregexpで受理できてもPostgreSQLのARE構文では不正なパターンがある（\p{L} など）。
const pgcodeInvalidRegularExpression = "2201B"

// PostgresDocumentRepo はJSONBカラムにドキュメントを格納するPostgreSQLリポジトリ。
// 1インスタンスが1コレクション（テーブル）を担当する。
type PostgresDocumentRepo struct {
	db    DB
	table string
}

// NewPostgresDocumentRepo は指定コレクションのPostgresDocumentRepoを生成する。
// テーブル名は定義済みのCollection定数からのみ決まる。
func NewPostgresDocumentRepo(db DB, collection Collection) *PostgresDocumentRepo {
	switch collection {
	case CollectionBlogs, CollectionComments, CollectionWishlist, CollectionCategories:
	default:
		panic(fmt.Sprintf("repository: unknown collection %q", collection))
	}
	return &PostgresDocumentRepo{db: db, table: string(collection)}
}

// Find はQueryに一致するドキュメントを返す。
func (r *PostgresDocumentRepo) Find(ctx context.Context, q *query.Query) ([]model.Document, error) {
	if q == nil {
		q = &query.Query{}
	}

	b := &query.Builder{}
	where, err := q.Filter.Where(b)
	if err != nil {
		return nil, err
	}
	order := query.OrderBy(q.Sort, b)

	sql := fmt.Sprintf(`SELECT id::text, doc FROM %s WHERE %s ORDER BY %s`, r.table, where, order)
	if q.Limit > 0 {
		sql += " LIMIT " + b.Arg(q.Limit)
	}
	if q.Skip > 0 {
		sql += " OFFSET " + b.Arg(q.Skip)
	}

	rows, err := r.db.Query(ctx, sql, b.Args()...)
	if err != nil {
		return nil, r.filterError("find", err)
	}
	defer rows.Close()

	docs := make([]model.Document, 0)
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", r.table, err)
		}
		doc, err := decodeDocument(id, raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, q.Projection.Apply(doc))
	}
	if err := rows.Err(); err != nil {
		return nil, r.filterError("iterate", err)
	}

	return docs, nil
}

// FindByID は指定IDのドキュメントを取得する。見つからない場合はnilを返す。
func (r *PostgresDocumentRepo) FindByID(ctx context.Context, id string) (model.Document, error) {
	if !isValidID(id) {
		return nil, ErrInvalidID
	}

	var (
		docID string
		raw   []byte
	)
	err := r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT id::text, doc FROM %s WHERE id = $1::uuid`, r.table),
		id,
	).Scan(&docID, &raw)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s by ID: %w", r.table, err)
	}

	return decodeDocument(docID, raw)
}

// Count はFilterに一致するドキュメント数を返す。
func (r *PostgresDocumentRepo) Count(ctx context.Context, f query.Filter) (int64, error) {
	b := &query.Builder{}
	where, err := f.Where(b)
	if err != nil {
		return 0, err
	}

	var n int64
	err = r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s WHERE %s`, r.table, where),
		b.Args()...,
	).Scan(&n)
	if err != nil {
		return 0, r.filterError("count", err)
	}
	return n, nil
}

// Insert はドキュメントを新しいIDで保存し、そのIDを返す。
func (r *PostgresDocumentRepo) Insert(ctx context.Context, doc model.Document) (string, error) {
	raw, err := json.Marshal(doc.Without(model.IDField))
	if err != nil {
		return "", fmt.Errorf("failed to encode %s document: %w", r.table, err)
	}

	id := uuid.New().String()
	_, err = r.db.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1::uuid, $2::jsonb)`, r.table),
		id, string(raw),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert %s: %w", r.table, err)
	}

	return id, nil
}

// UpdateOne は指定IDかつFilterに一致するドキュメントにfieldsをシャローマージする。
// 一致件数と、内容が実際に変わった件数を返す。
func (r *PostgresDocumentRepo) UpdateOne(ctx context.Context, id string, f query.Filter, fields model.Document) (UpdateResult, error) {
	if !isValidID(id) {
		return UpdateResult{}, ErrInvalidID
	}

	raw, err := json.Marshal(fields.Without(model.IDField))
	if err != nil {
		return UpdateResult{}, fmt.Errorf("failed to encode %s update: %w", r.table, err)
	}

	b := &query.Builder{}
	patch := b.Arg(string(raw))
	idArg := b.Arg(id)
	where, err := f.Where(b)
	if err != nil {
		return UpdateResult{}, err
	}

	sql := fmt.Sprintf(`
		WITH target AS (
			SELECT id, doc FROM %[1]s WHERE id = %[2]s::uuid AND %[3]s FOR UPDATE
		), updated AS (
			UPDATE %[1]s AS t SET doc = target.doc || %[4]s::jsonb, updated_at = now()
			FROM target
			WHERE t.id = target.id AND target.doc IS DISTINCT FROM target.doc || %[4]s::jsonb
			RETURNING t.id
		)
		SELECT (SELECT count(*) FROM target), (SELECT count(*) FROM updated)`,
		r.table, idArg, where, patch)

	var res UpdateResult
	if err := r.db.QueryRow(ctx, sql, b.Args()...).Scan(&res.MatchedCount, &res.ModifiedCount); err != nil {
		return UpdateResult{}, r.filterError("update", err)
	}
	return res, nil
}

// DeleteByID は指定IDのドキュメントを削除し、削除件数を返す。
func (r *PostgresDocumentRepo) DeleteByID(ctx context.Context, id string) (int64, error) {
	if !isValidID(id) {
		return 0, ErrInvalidID
	}

	tag, err := r.db.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = $1::uuid`, r.table),
		id,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s: %w", r.table, err)
	}
	return tag.RowsAffected(), nil
}

// filterError はフィルタを含むクエリのエラーをラップする。
// 正規表現のエラーはクライアントの入力不備としてquery.ErrInvalidQueryに変換する。
func (r *PostgresDocumentRepo) filterError(action string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgcodeInvalidRegularExpression {
		return fmt.Errorf("%w: unsupported $regex: %s", query.ErrInvalidQuery, pgErr.Message)
	}
	return fmt.Errorf("failed to %s %s: %w", action, r.table, err)
}

// decodeDocument はJSONBの内容をデコードし、_id を付与する。
// 数値はjson.Numberのまま保持し、再エンコード時の精度落ちを防ぐ。
func decodeDocument(id string, raw []byte) (model.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	doc := model.Document{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	doc[model.IDField] = id
	return doc, nil
}

func isValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// compile-time interface check
var _ DocumentRepository = (*PostgresDocumentRepo)(nil)

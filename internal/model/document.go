package model

// IDField はドキュメントの識別子を表すフィールド名。
// 値はテーブルの主キー（UUID文字列）と一致する。
const IDField = "_id"

// ブログ・ウィッシュリスト・カテゴリで参照するフィールド名。
const (
	FieldAuthorEmail = "author_email"
	FieldCategory    = "category"
	FieldTitle       = "title"
	FieldUserEmail   = "user_email"
	FieldTotalBlogs  = "totalBlogs"
)

// Document はコレクションに格納される任意のJSONドキュメント。
// スキーマは持たず、ハンドラーは認可・集計に必要なフィールドのみを参照する。
type Document map[string]any

// ID はドキュメントの _id を返す。未設定の場合は空文字列。
func (d Document) ID() string {
	return d.String(IDField)
}

// String は指定フィールドの文字列値を返す。
// 存在しない、または文字列でない場合は空文字列を返す。
func (d Document) String(field string) string {
	s, _ := d[field].(string)
	return s
}

// Without は指定フィールドを除いたシャローコピーを返す。
func (d Document) Without(fields ...string) Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	for _, f := range fields {
		delete(out, f)
	}
	return out
}

package query

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hitoshi/moreblogs/internal/model"
)

// TextSearchVector はblogsの全文検索インデックスと同一の式。
// マイグレーションのインデックス定義と一致させること。
const TextSearchVector = `to_tsvector('simple', coalesce(doc->>'title', '') || ' ' || coalesce(doc->>'category', '') || ' ' || coalesce(doc->>'author', ''))`

// Builder はバインドパラメータを蓄積しながらSQL片を組み立てる。
type Builder struct {
	args []any
}

// Arg は値をパラメータとして追加し、プレースホルダ（$n）を返す。
func (b *Builder) Arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

// Args は追加された順のパラメータを返す。
func (b *Builder) Args() []any {
	return b.args
}

// Where はFilterをWHERE句の条件式に変換する。条件がない場合は "TRUE" を返す。
func (f Filter) Where(b *Builder) (string, error) {
	if f.IsEmpty() {
		return "TRUE", nil
	}

	var parts []string
	for _, c := range f.Conditions {
		sql, err := c.sql(b)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	if f.TextSearch != "" {
		parts = append(parts, fmt.Sprintf("%s @@ plainto_tsquery('simple', %s)", TextSearchVector, b.Arg(f.TextSearch)))
	}
	return strings.Join(parts, " AND "), nil
}

func (c Condition) sql(b *Builder) (string, error) {
	if c.IsID() {
		return c.idSQL(b)
	}

	switch c.Op {
	case OpEq, OpNe:
		doc, err := containment(c.Path, c.Value)
		if err != nil {
			return "", err
		}
		expr := "doc @> " + b.Arg(doc) + "::jsonb"
		if c.Op == OpNe {
			return "NOT (" + expr + ")", nil
		}
		return expr, nil
	case OpIn:
		list, _ := c.Value.([]any)
		if len(list) == 0 {
			return "FALSE", nil
		}
		values, err := json.Marshal(list)
		if err != nil {
			return "", fmt.Errorf("failed to encode $in values: %w", err)
		}
		return fmt.Sprintf("doc #> %s::text[] IN (SELECT jsonb_array_elements(%s::jsonb))",
			b.Arg(c.Path), b.Arg(string(values))), nil
	case OpRegex:
		op := "~"
		if c.CaseInsensitive {
			op = "~*"
		}
		return fmt.Sprintf("doc #>> %s::text[] %s %s", b.Arg(c.Path), op, b.Arg(c.Value)), nil
	default:
		return "", invalid("unsupported operator")
	}
}

func (c Condition) idSQL(b *Builder) (string, error) {
	switch c.Op {
	case OpEq:
		return "id = " + b.Arg(c.Value) + "::uuid", nil
	case OpNe:
		return "id <> " + b.Arg(c.Value) + "::uuid", nil
	case OpIn:
		list, _ := c.Value.([]any)
		ids := make([]string, 0, len(list))
		for _, v := range list {
			s, _ := v.(string)
			ids = append(ids, s)
		}
		if len(ids) == 0 {
			return "FALSE", nil
		}
		return "id = ANY(" + b.Arg(ids) + "::uuid[])", nil
	default:
		return "", invalid("unsupported operator on _id")
	}
}

// OrderBy はソート指定をORDER BY句の式に変換する。
// 同順位の並びを安定させるため、最後に作成日時とIDを付け加える。
func OrderBy(fields []SortField, b *Builder) string {
	parts := make([]string, 0, len(fields)+2)
	for _, f := range fields {
		dir := "ASC"
		if f.Desc {
			dir = "DESC"
		}
		if len(f.Path) == 1 {
			switch f.Path[0] {
			case model.IDField:
				parts = append(parts, "id "+dir)
				continue
			case NaturalOrder:
				parts = append(parts, "created_at "+dir)
				continue
			}
		}
		parts = append(parts, "doc #> "+b.Arg(f.Path)+"::text[] "+dir)
	}
	parts = append(parts, "created_at ASC", "id ASC")
	return strings.Join(parts, ", ")
}

// containment はパスと値からJSONB包含演算子（@>）用のドキュメントを組み立てる。
// 例: ["author", "email"], "a@x.com" → {"author":{"email":"a@x.com"}}
func containment(path []string, value any) (string, error) {
	var v any = value
	for i := len(path) - 1; i >= 0; i-- {
		v = map[string]any{path[i]: v}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode filter value: %w", err)
	}
	return string(b), nil
}

// sortConditions は条件をパスと演算子で並べ替え、生成されるSQLを決定的にする。
func sortConditions(conds []Condition) {
	sort.SliceStable(conds, func(i, j int) bool {
		pi, pj := strings.Join(conds[i].Path, "."), strings.Join(conds[j].Path, ".")
		if pi != pj {
			return pi < pj
		}
		return conds[i].Op < conds[j].Op
	})
}

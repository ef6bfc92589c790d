// Package query はクライアントから渡される query / sort / projection / limit / skip を
// 検証し、パラメータ化SQLに変換できる型付きのQueryに変換する。
//
// クライアントのフィルタ値はSQLに文字列として埋め込まず、必ずバインドパラメータとして渡す。
// フィールドパスも text[] パラメータとして渡すため、任意のSQL片を注入することはできない。
// 許可していない演算子を含むフィルタは ErrInvalidQuery で拒否する。
package query

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/moreblogs/internal/model"
)

// ErrInvalidQuery はクエリパラメータが解析できない、または許可されていない場合のエラー。
var ErrInvalidQuery = errors.New("invalid query")

// fieldPattern はフィールド名として受け付ける形式（ドット区切りのネスト可）。
var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z0-9_]+)*$`)

// Op はフィルタ条件の比較演算子。
type Op int

const (
	OpEq Op = iota
	OpNe
	OpIn
	OpRegex
)

// Condition は1つのフィールドに対する比較条件。
type Condition struct {
	Path []string
	Op   Op
	// Value はOpEq/OpNeでは任意のJSON値、OpInではJSON値のスライス、OpRegexでは正規表現文字列。
	Value any
	// CaseInsensitive はOpRegexで $options に "i" が含まれる場合にtrue。
	CaseInsensitive bool
}

// IsID は条件が _id（主キー）に対するものかを返す。
func (c Condition) IsID() bool {
	return len(c.Path) == 1 && c.Path[0] == model.IDField
}

// Filter はANDで結合されるフィルタ条件の集合。
type Filter struct {
	Conditions []Condition
	// TextSearch は $text.$search に指定された全文検索語。空の場合は検索しない。
	TextSearch string
}

// IsEmpty は条件が1つもないかを返す。
func (f Filter) IsEmpty() bool {
	return len(f.Conditions) == 0 && f.TextSearch == ""
}

// Eq は等価条件を追加したFilterを返す。ハンドラーが所有者条件を付け足す際に使う。
func (f Filter) Eq(field string, value any) Filter {
	conds := make([]Condition, 0, len(f.Conditions)+1)
	conds = append(conds, f.Conditions...)
	conds = append(conds, Condition{Path: strings.Split(field, "."), Op: OpEq, Value: value})
	return Filter{Conditions: conds, TextSearch: f.TextSearch}
}

// EqualString はトップレベルフィールドに対する文字列の等価条件の値を返す。
// 該当する条件がない場合はokがfalseになる。
func (f Filter) EqualString(field string) (value string, ok bool) {
	for _, c := range f.Conditions {
		if c.Op != OpEq || len(c.Path) != 1 || c.Path[0] != field {
			continue
		}
		if s, isString := c.Value.(string); isString {
			return s, true
		}
	}
	return "", false
}

// NaturalOrder は挿入順でソートする特別なキー。{"$natural": -1} で新しい順になる。
const NaturalOrder = "$natural"

// SortField はソートキー1つ分。
type SortField struct {
	Path []string
	Desc bool
}

// Query は1回の検索に必要な条件一式。
type Query struct {
	Filter     Filter
	Sort       []SortField
	Projection *Projection
	// Limit は0の場合、件数制限なし。
	Limit int64
	Skip  int64
}

// FromValues はURLクエリパラメータからQueryを組み立てる。
// query / sort / projection はJSON文字列、limit / skip は整数として解釈する。
func FromValues(v url.Values) (*Query, error) {
	f, err := ParseFilter(v.Get("query"))
	if err != nil {
		return nil, err
	}
	s, err := ParseSort(v.Get("sort"))
	if err != nil {
		return nil, err
	}
	p, err := ParseProjection(v.Get("projection"))
	if err != nil {
		return nil, err
	}
	limit, err := parseNonNegative("limit", v.Get("limit"))
	if err != nil {
		return nil, err
	}
	skip, err := parseNonNegative("skip", v.Get("skip"))
	if err != nil {
		return nil, err
	}

	return &Query{
		Filter:     f,
		Sort:       s,
		Projection: p,
		Limit:      limit,
		Skip:       skip,
	}, nil
}

// ParseFilter はJSONオブジェクト文字列をFilterに変換する。
// 空文字列は条件なしとして扱う。
func ParseFilter(raw string) (Filter, error) {
	var f Filter
	if isBlank(raw) {
		return f, nil
	}

	var obj map[string]any
	if err := decodeJSON(raw, &obj); err != nil {
		return f, invalid("query must be a JSON object")
	}
	if obj == nil {
		return f, nil
	}

	for key, val := range obj {
		if strings.HasPrefix(key, "$") {
			if key != "$text" {
				return f, invalid("unsupported top-level operator %q", key)
			}
			search, err := parseTextSearch(val)
			if err != nil {
				return f, err
			}
			f.TextSearch = search
			continue
		}

		if !fieldPattern.MatchString(key) {
			return f, invalid("invalid field name %q", key)
		}
		conds, err := parseFieldValue(key, val)
		if err != nil {
			return f, err
		}
		f.Conditions = append(f.Conditions, conds...)
	}

	sortConditions(f.Conditions)
	return f, nil
}

// parseFieldValue はフィールド1つ分の値を条件に変換する。
// 値が全て$で始まるキーを持つオブジェクトの場合は演算子として解釈し、
// それ以外は埋め込みドキュメントを含む等価条件とする。
func parseFieldValue(field string, val any) ([]Condition, error) {
	path := strings.Split(field, ".")

	ops, isObj := val.(map[string]any)
	if !isObj || !hasOperatorKeys(ops) {
		c := Condition{Path: path, Op: OpEq, Value: val}
		if err := validateIDCondition(c); err != nil {
			return nil, err
		}
		return []Condition{c}, nil
	}

	for k := range ops {
		if !strings.HasPrefix(k, "$") {
			return nil, invalid("field %q mixes operators and plain keys", field)
		}
	}

	var conds []Condition
	for op, arg := range ops {
		var c Condition
		switch op {
		case "$eq":
			c = Condition{Path: path, Op: OpEq, Value: arg}
		case "$ne":
			c = Condition{Path: path, Op: OpNe, Value: arg}
		case "$in":
			list, ok := arg.([]any)
			if !ok {
				return nil, invalid("$in on %q requires an array", field)
			}
			c = Condition{Path: path, Op: OpIn, Value: list}
		case "$regex":
			pattern, ok := arg.(string)
			if !ok {
				return nil, invalid("$regex on %q requires a string", field)
			}
			if _, err := regexp.Compile(pattern); err != nil {
				return nil, invalid("invalid $regex on %q", field)
			}
			c = Condition{Path: path, Op: OpRegex, Value: pattern}
			if opts, ok := ops["$options"].(string); ok {
				c.CaseInsensitive = strings.Contains(opts, "i")
			}
		case "$options":
			if _, ok := ops["$regex"]; !ok {
				return nil, invalid("$options on %q requires $regex", field)
			}
			continue
		default:
			return nil, invalid("unsupported operator %q on %q", op, field)
		}
		if err := validateIDCondition(c); err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}
	return conds, nil
}

// validateIDCondition は _id 条件の値がUUIDであることを検証する。
func validateIDCondition(c Condition) error {
	if !c.IsID() {
		return nil
	}
	switch c.Op {
	case OpEq, OpNe:
		if !isUUIDString(c.Value) {
			return invalid("_id must be a valid id")
		}
	case OpIn:
		for _, v := range c.Value.([]any) {
			if !isUUIDString(v) {
				return invalid("_id must be a valid id")
			}
		}
	default:
		return invalid("unsupported operator on _id")
	}
	return nil
}

func parseTextSearch(val any) (string, error) {
	obj, ok := val.(map[string]any)
	if !ok {
		return "", invalid("$text must be an object")
	}
	search, ok := obj["$search"].(string)
	if !ok {
		return "", invalid("$text requires a $search string")
	}
	return strings.TrimSpace(search), nil
}

// ParseSort は {"field": 1 | -1} 形式のJSONをキーの出現順を保ったままSortFieldに変換する。
func ParseSort(raw string) ([]SortField, error) {
	if isBlank(raw) {
		return nil, nil
	}

	var fields []SortField
	err := walkObject(raw, func(key string, val any) error {
		if key != NaturalOrder && !fieldPattern.MatchString(key) {
			return invalid("invalid sort field %q", key)
		}
		desc, err := sortDirection(val)
		if err != nil {
			return invalid("invalid sort direction for %q", key)
		}
		fields = append(fields, SortField{Path: strings.Split(key, "."), Desc: desc})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fields, nil
}

func sortDirection(val any) (bool, error) {
	switch v := val.(type) {
	case json.Number:
		switch v.String() {
		case "1":
			return false, nil
		case "-1":
			return true, nil
		}
	case string:
		switch strings.ToLower(v) {
		case "asc", "ascending":
			return false, nil
		case "desc", "descending":
			return true, nil
		}
	}
	return false, fmt.Errorf("unknown direction %v", val)
}

func parseNonNegative(name, raw string) (int64, error) {
	if isBlank(raw) {
		return 0, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n < 0 {
		return 0, invalid("%s must be a non-negative integer", name)
	}
	return n, nil
}

// walkObject はJSONオブジェクトのキーと値を出現順にコールバックへ渡す。
func walkObject(raw string, fn func(key string, val any) error) error {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return invalid("expected a JSON object")
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return invalid("expected a JSON object")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return invalid("malformed JSON object")
		}
		key, ok := tok.(string)
		if !ok {
			return invalid("malformed JSON object")
		}
		var val any
		if err := dec.Decode(&val); err != nil {
			return invalid("malformed JSON object")
		}
		if err := fn(key, val); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return invalid("malformed JSON object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return invalid("unexpected data after JSON object")
	}
	return nil
}

// decodeJSON は数値をjson.Numberとして保持したままデコードする。
// 再エンコード時に整数が浮動小数点に化けるのを防ぐ。
func decodeJSON(raw string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

func hasOperatorKeys(obj map[string]any) bool {
	for k := range obj {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

func isUUIDString(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func isBlank(raw string) bool {
	s := strings.TrimSpace(raw)
	return s == "" || s == "undefined" || s == "null"
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...))
}

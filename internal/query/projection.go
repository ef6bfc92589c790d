package query

import (
	"encoding/json"
	"strings"

	"github.com/hitoshi/moreblogs/internal/model"
)

// Projection は返却するトップレベルフィールドの選択。
// Includeがtrueの場合はFieldsのみを返し、falseの場合はFieldsを除外する。
// _id はExcludeIDが指定されない限り常に返す。
type Projection struct {
	Fields    map[string]bool
	Include   bool
	ExcludeID bool
}

// ParseProjection は {"field": 1 | 0} 形式のJSONをProjectionに変換する。
// 包含と除外の混在は _id を除いて許可しない。ネストしたパスは受け付けない。
func ParseProjection(raw string) (*Projection, error) {
	if isBlank(raw) {
		return nil, nil
	}

	p := &Projection{Fields: make(map[string]bool)}
	var sawInclude, sawExclude bool

	err := walkObject(raw, func(key string, val any) error {
		if !fieldPattern.MatchString(key) || strings.Contains(key, ".") {
			return invalid("invalid projection field %q", key)
		}
		include, err := projectionFlag(val)
		if err != nil {
			return invalid("invalid projection value for %q", key)
		}
		if key == model.IDField {
			p.ExcludeID = !include
			return nil
		}
		if include {
			sawInclude = true
		} else {
			sawExclude = true
		}
		p.Fields[key] = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if sawInclude && sawExclude {
		return nil, invalid("projection cannot mix inclusion and exclusion")
	}

	p.Include = sawInclude
	return p, nil
}

func projectionFlag(val any) (bool, error) {
	switch v := val.(type) {
	case bool:
		return v, nil
	case json.Number:
		switch v.String() {
		case "1":
			return true, nil
		case "0":
			return false, nil
		}
	}
	return false, ErrInvalidQuery
}

// Apply はドキュメントに射影を適用した新しいドキュメントを返す。
// nilのProjectionは元のドキュメントをそのまま返す。
func (p *Projection) Apply(doc model.Document) model.Document {
	if p == nil {
		return doc
	}

	out := make(model.Document, len(doc))
	for k, v := range doc {
		if k == model.IDField {
			if !p.ExcludeID {
				out[k] = v
			}
			continue
		}
		if p.Include == p.Fields[k] {
			out[k] = v
		}
	}
	return out
}

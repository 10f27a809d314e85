package qdrant

import (
	"fmt"
	"sort"
	"strings"
)

// Callers express filters as a small operator map and the client translates
// it to qdrant's must/must_not clause shape. Supported forms:
//
//	{"mode": "osu"}                      field equality
//	{"beatmapset_id": {"$ne": 42}}       field exclusion
//	{"beatmap_id": {"$in": [1, 2, 3]}}   membership
//	{"$not": {"mode": "mania"}}          negated sub-filter
const (
	filterOpNot = "$not"
	filterOpIn  = "$in"
	filterOpEq  = "$eq"
	filterOpNe  = "$ne"
)

type translatedFilter struct {
	Must    []any
	MustNot []any
}

func (f translatedFilter) asMap() map[string]any {
	out := map[string]any{}
	if len(f.Must) > 0 {
		out["must"] = f.Must
	}
	if len(f.MustNot) > 0 {
		out["must_not"] = f.MustNot
	}
	return out
}

func mergeTranslatedFilters(dst *translatedFilter, src translatedFilter) {
	if dst == nil {
		return
	}
	dst.Must = append(dst.Must, src.Must...)
	dst.MustNot = append(dst.MustNot, src.MustNot...)
}

func translateFilterMap(filter map[string]any) (translatedFilter, error) {
	out := translatedFilter{}
	if len(filter) == 0 {
		return out, nil
	}

	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := filter[key]
		k := strings.TrimSpace(key)
		if k == "" {
			continue
		}

		if strings.HasPrefix(k, "$") {
			if strings.ToLower(k) != filterOpNot {
				return translatedFilter{}, opErr(
					"filter_translate",
					OperationErrorUnsupportedFilter,
					fmt.Sprintf("unsupported top-level filter operator %q", k),
					nil,
				)
			}
			item, ok := value.(map[string]any)
			if !ok {
				return translatedFilter{}, opErr(
					"filter_translate",
					OperationErrorValidation,
					fmt.Sprintf("operator %s expects an object", filterOpNot),
					nil,
				)
			}
			sub, err := translateFilterMap(item)
			if err != nil {
				return translatedFilter{}, err
			}
			out.MustNot = append(out.MustNot, sub.asMap())
			continue
		}

		fieldPart, err := translateFieldFilter(k, value)
		if err != nil {
			return translatedFilter{}, err
		}
		mergeTranslatedFilters(&out, fieldPart)
	}

	return out, nil
}

func translateFieldFilter(field string, value any) (translatedFilter, error) {
	out := translatedFilter{}

	ops, isOpMap := value.(map[string]any)
	if !isOpMap {
		out.Must = append(out.Must, matchCondition(field, value))
		return out, nil
	}

	if len(ops) == 0 {
		return translatedFilter{}, opErr(
			"filter_translate",
			OperationErrorValidation,
			fmt.Sprintf("field %q has empty operator map", field),
			nil,
		)
	}

	names := make([]string, 0, len(ops))
	for op := range ops {
		names = append(names, op)
	}
	sort.Strings(names)

	for _, op := range names {
		opVal := ops[op]
		switch strings.ToLower(strings.TrimSpace(op)) {
		case filterOpEq:
			out.Must = append(out.Must, matchCondition(field, opVal))
		case filterOpNe:
			out.MustNot = append(out.MustNot, matchCondition(field, opVal))
		case filterOpIn:
			values, ok := opVal.([]any)
			if !ok || len(values) == 0 {
				return translatedFilter{}, opErr(
					"filter_translate",
					OperationErrorValidation,
					fmt.Sprintf("operator %s for field %q expects a non-empty array", filterOpIn, field),
					nil,
				)
			}
			out.Must = append(out.Must, map[string]any{
				"key": field,
				"match": map[string]any{
					"any": values,
				},
			})
		default:
			return translatedFilter{}, opErr(
				"filter_translate",
				OperationErrorUnsupportedFilter,
				fmt.Sprintf("unsupported filter operator %q for field %q", op, field),
				nil,
			)
		}
	}
	return out, nil
}

func matchCondition(key string, value any) map[string]any {
	return map[string]any{
		"key": key,
		"match": map[string]any{
			"value": value,
		},
	}
}

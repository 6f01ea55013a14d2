package geojson

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aclements/go-moremath/stats"
	orbjson "github.com/paulmach/orb/geojson"

	"github.com/sandrolain/goviz/pkg/types"
)

// IDProperty is the column filled from the GeoJSON feature ids when the
// properties do not carry it.
const IDProperty = "cartodb_id"

// inferColumns types every property of the features and computes the column
// statistics.
// Numbers and booleans make number columns, RFC 3339 strings date columns
// and every other scalar a category column. Columns holding objects or
// arrays are skipped.
func inferColumns(features []*orbjson.Feature) ([]types.Column, []string) {
	values := make(map[string][]any)
	for _, f := range features {
		for name, v := range f.Properties {
			if v != nil {
				values[name] = append(values[name], v)
			}
		}
	}
	if _, ok := values[IDProperty]; !ok {
		var ids []any
		for _, f := range features {
			if id, ok := f.ID.(float64); ok {
				ids = append(ids, id)
			}
		}
		if len(ids) == len(features) && len(ids) > 0 {
			values[IDProperty] = ids
		}
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var columns []types.Column
	var skipped []string
	for _, name := range names {
		c, ok := inferColumn(name, values[name])
		if !ok {
			skipped = append(skipped, name)
			continue
		}
		columns = append(columns, c)
	}
	return columns, skipped
}

func inferColumn(name string, values []any) (types.Column, bool) {
	c := types.Column{Name: name, Type: types.TypeCategory}
	numbers, dates := true, true
	for _, v := range values {
		switch x := v.(type) {
		case map[string]any, []any:
			return c, false
		case float64, bool:
			dates = false
		case string:
			numbers = false
			if _, err := time.Parse(time.RFC3339, x); err != nil {
				dates = false
			}
		default:
			numbers, dates = false, false
		}
	}
	switch {
	case numbers:
		c.Type = types.TypeNumber
	case dates:
		c.Type = types.TypeDate
	default:
		c.CategoryNames = categoryNames(values)
		return c, true
	}
	nums := make([]float64, len(values))
	for i, v := range values {
		nums[i], _ = numericValue(c.Type, v)
	}
	c.Min, c.Max = stats.Bounds(nums)
	c.Avg = stats.Mean(nums)
	return c, true
}

// categoryNames orders the distinct values by descending frequency, then by
// name.
func categoryNames(values []any) []string {
	counts := make(map[string]int)
	for _, v := range values {
		counts[categoryName(v)]++
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

func categoryName(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// numericValue converts a number, boolean or date value. Dates become Unix
// seconds.
func numericValue(t types.Type, v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		if t != types.TypeDate {
			return 0, false
		}
		ts, err := time.Parse(time.RFC3339, x)
		if err != nil {
			return 0, false
		}
		return float64(ts.UnixNano()) / 1e9, true
	}
	return 0, false
}

// encode returns the texel value of v in column c. Missing values are NaN.
func encode(meta *types.Metadata, c *types.Column, v any) float32 {
	if v == nil {
		return float32(math.NaN())
	}
	if c.Type == types.TypeCategory {
		id, ok := meta.CategoryID(categoryName(v))
		if !ok {
			return float32(math.NaN())
		}
		return float32(id)
	}
	x, ok := numericValue(c.Type, v)
	if !ok {
		return float32(math.NaN())
	}
	return float32(x)
}

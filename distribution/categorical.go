package distribution

import (
	"fmt"
	"reflect"
	"sort"
)

type valueCount struct {
	value interface{}
	count int
}

// summarizeCategorical builds a frequency table of non-null values.
// Counts are sorted descending; equal counts keep first-appearance order.
func summarizeCategorical(values []interface{}) (*Distribution, error) {
	if len(values) == 0 {
		return nil, nil
	}

	index := make(map[interface{}]int)
	groups := make([]valueCount, 0)

	for _, v := range values {
		if !reflect.TypeOf(v).Comparable() {
			return nil, fmt.Errorf("cannot count values of type %T", v)
		}
		if i, ok := index[v]; ok {
			groups[i].count++
			continue
		}
		index[v] = len(groups)
		groups = append(groups, valueCount{value: v, count: 1})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].count > groups[j].count
	})

	dist := &Distribution{
		Type:   Categorical,
		Labels: make([]interface{}, len(groups)),
		Counts: make([]int, len(groups)),
	}
	for i, g := range groups {
		dist.Labels[i] = g.value
		dist.Counts[i] = g.count
	}

	return dist, nil
}

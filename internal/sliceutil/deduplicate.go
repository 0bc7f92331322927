// Package sliceutil provides generic slice manipulation utilities.
package sliceutil

// Deduplicate removes duplicate items from a slice while preserving order.
// The keyFunc extracts a unique key from each item for comparison.
// Only the first occurrence of each key is kept.
//
//	courses := []course.Course{{ID: "1"}, {ID: "2"}, {ID: "1"}}
//	unique := sliceutil.Deduplicate(courses, func(c course.Course) string { return c.ID })
//	// Result: [{ID: "1"}, {ID: "2"}]
func Deduplicate[T any, K comparable](items []T, keyFunc func(T) K) []T {
	if len(items) == 0 {
		return items
	}
	seen := make(map[K]struct{}, len(items))
	result := make([]T, 0, len(items))
	for _, item := range items {
		key := keyFunc(item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, item)
	}
	return result
}

// Union appends every item of add that is not already in base (or earlier
// in add) and returns the grown slice with the number of items appended.
// Existing order is preserved; base is never reordered.
func Union[T comparable](base []T, add ...T) ([]T, int) {
	seen := make(map[T]struct{}, len(base)+len(add))
	for _, item := range base {
		seen[item] = struct{}{}
	}
	added := 0
	for _, item := range add {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		base = append(base, item)
		added++
	}
	return base, added
}

package sliceutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type testItem struct {
	ID   string
	Name string
}

func TestDeduplicate(t *testing.T) {
	t.Parallel()

	byID := func(t testItem) string { return t.ID }

	tests := []struct {
		name  string
		items []testItem
		want  []testItem
	}{
		{
			name:  "No duplicates",
			items: []testItem{{"1", "A"}, {"2", "B"}},
			want:  []testItem{{"1", "A"}, {"2", "B"}},
		},
		{
			name:  "First occurrence wins",
			items: []testItem{{"1", "A"}, {"2", "B"}, {"1", "C"}, {"3", "D"}},
			want:  []testItem{{"1", "A"}, {"2", "B"}, {"3", "D"}},
		},
		{
			name:  "Empty",
			items: []testItem{},
			want:  []testItem{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Deduplicate(tt.items, byID))
		})
	}
}

func TestDeduplicate_Idempotent(t *testing.T) {
	t.Parallel()

	items := []testItem{{"1", "A"}, {"1", "B"}, {"2", "C"}}
	once := Deduplicate(items, func(t testItem) string { return t.ID })
	twice := Deduplicate(once, func(t testItem) string { return t.ID })
	assert.Equal(t, once, twice)
}

func TestUnion(t *testing.T) {
	t.Parallel()

	got, added := Union([]string{"a", "b"}, "b", "c", "c", "d")
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
	assert.Equal(t, 2, added)

	got, added = Union(got, "a", "d")
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
	assert.Zero(t, added)

	got, added = Union[string](nil)
	assert.Empty(t, got)
	assert.Zero(t, added)
}

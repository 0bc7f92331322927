package stringutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNumeric(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"1121", true},
		{"", false},
		{"112X", false},
		{"１２", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := IsNumeric(tt.in); got != tt.want {
				t.Errorf("IsNumeric(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestContainsAllRunes(t *testing.T) {
	tests := []struct {
		s, chars string
		want     bool
	}{
		{"資訊工程學系", "資工系", true},
		{"王小明", "明王", true},
		{"王小明", "王王", false},
		{"Calculus", "CALC", true},
		{"Calculus", "calc x", false},
		{"", "a", false},
		{"anything", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.s+"/"+tt.chars, func(t *testing.T) {
			if got := ContainsAllRunes(tt.s, tt.chars); got != tt.want {
				t.Errorf("ContainsAllRunes(%q, %q) = %v, want %v", tt.s, tt.chars, got, tt.want)
			}
		})
	}
}

func TestSplitAny(t *testing.T) {
	assert.Equal(t, []string{"王小明", "李大華", "陳一", "Alice"},
		SplitAny(" 王小明, 李大華、陳一，Alice ", ",，、"))
	assert.Empty(t, SplitAny(" , 、", ",，、"))
	assert.Equal(t, []string{"Solo"}, SplitAny("Solo", ",，、"))
}

package vercmp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareNumericNotLexical(t *testing.T) {
	assert.Equal(t, Lower, Compare("1.2", "1.10"))
	assert.Equal(t, Higher, Compare("1.10", "1.2"))
}

func TestCompare(t *testing.T) {
	cases := []struct {
		a, b string
		want Rel
	}{
		{"1.0", "1.0", Equal},
		{"1.0", "1.0.0", Equal}, // trailing zeros
		{"1.0.1", "1.0", Higher},
		{"0.9", "1.0", Lower},
		{"2", "1.9.9", Higher},
		{"", "1.0", Lower},        // absent reads as "0"
		{"", "", Equal},           // both absent
		{"1.x.2", "1.0.2", Equal}, // junk segment reads as 0
		{"1.-3", "1.0", Equal},
		{" 1.2 ", "1.2", Equal},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, Compare(c.a, c.b), "Compare(%q, %q)", c.a, c.b)
	}
}

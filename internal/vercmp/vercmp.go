// Package vercmp — численное сравнение dotted-версий прошивок ("1.2.10").
package vercmp

import (
	"strconv"
	"strings"
)

type Rel int

const (
	Lower  Rel = -1 // первая версия ниже второй
	Equal  Rel = 0
	Higher Rel = 1
)

func (r Rel) String() string {
	switch r {
	case Lower:
		return "lower"
	case Higher:
		return "higher"
	default:
		return "equal"
	}
}

// Compare сравнивает a и b посегментно, численно (не лексически):
// "1.2" < "1.10". Короткая версия дополняется нулями, мусорные сегменты
// читаются как 0, пустая строка — как "0".
func Compare(a, b string) Rel {
	as := segments(a)
	bs := segments(b)
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		av, bv := 0, 0
		if i < len(as) {
			av = as[i]
		}
		if i < len(bs) {
			bv = bs[i]
		}
		if av < bv {
			return Lower
		}
		if av > bv {
			return Higher
		}
	}
	return Equal
}

func segments(v string) []int {
	v = strings.TrimSpace(v)
	if v == "" {
		v = "0"
	}
	parts := strings.Split(v, ".")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			n = 0
		}
		out[i] = n
	}
	return out
}

// Package cmp has tiny comparators for maps and slices,
// mainly for assertions in tests.
package cmp

func MapEq[K comparable, V comparable](a, b map[K]V) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || va != vb {
			return false
		}
	}
	return true
}

func MapEqWith[K comparable, V any, U any](a map[K]V, b map[K]U, eq func(V, U) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || !eq(va, vb) {
			return false
		}
	}
	return true
}

func SliceEq[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for nth := range a {
		if a[nth] != b[nth] {
			return false
		}
	}
	return true
}

func SliceEqWith[T any, U any](a []T, b []U, eq func(T, U) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for nth := range a {
		if !eq(a[nth], b[nth]) {
			return false
		}
	}
	return true
}

// SliceContentEq checks that a and b hold the same items, ignoring order.
func SliceContentEq[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	rest := make(map[T]int, len(a))
	for _, v := range a {
		rest[v] += 1
	}
	for _, v := range b {
		if rest[v] == 0 {
			return false
		}
		rest[v] -= 1
	}
	return true
}

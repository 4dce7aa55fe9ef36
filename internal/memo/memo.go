// Package memo holds write-once result tables for values that are computed
// lazily during a build and must not change afterwards.
package memo

// Table maps keys to values computed at most once. Failed computations are
// not stored. A Table is not safe for concurrent use.
type Table[T any] struct {
	m map[string]T
}

// Get returns the value for key, computing it with fn on first use.
func (t *Table[T]) Get(key string, fn func() (T, error)) (T, error) {
	if v, ok := t.m[key]; ok {
		return v, nil
	}

	v, err := fn()
	if err != nil {
		return v, err
	}

	if t.m == nil {
		t.m = make(map[string]T)
	}
	t.m[key] = v
	return v, nil
}

// Len returns the number of stored values.
func (t *Table[T]) Len() int {
	return len(t.m)
}

package store

import "sync"

// View is a read-only projection of another Reader. Its listeners run inside
// the source's notification pass, so a view never lags its source.
type View[T, U any] struct {
	src   Reader[T]
	fn    func(T) U
	equal func(a, b U) bool
}

func Derive[T, U any](src Reader[T], fn func(T) U) *View[T, U] {
	return &View[T, U]{src: src, fn: fn}
}

// DeriveDistinct is Derive with notifications skipped while the projected
// value stays equal.
func DeriveDistinct[T, U any](src Reader[T], fn func(T) U, equal func(a, b U) bool) *View[T, U] {
	return &View[T, U]{src: src, fn: fn, equal: equal}
}

func (v *View[T, U]) Get() U {
	return v.fn(v.src.Get())
}

func (v *View[T, U]) Subscribe(fn func(U)) (unsubscribe func()) {
	if v.equal == nil {
		return v.src.Subscribe(func(val T) {
			fn(v.fn(val))
		})
	}

	var lk sync.Mutex
	last := v.Get()
	return v.src.Subscribe(func(val T) {
		next := v.fn(val)
		lk.Lock()
		same := v.equal(last, next)
		last = next
		lk.Unlock()
		if !same {
			fn(next)
		}
	})
}

package tree

import (
	"io/fs"
	"sync"
)

// Lazy returns a tree computed by fn on first access. fn runs at most once;
// its error is returned by every Open.
func Lazy(fn func() (fs.FS, error)) fs.FS {
	return &lazyFS{fn: fn}
}

type lazyFS struct {
	fn   func() (fs.FS, error)
	once sync.Once
	out  fs.FS
	err  error
}

func (l *lazyFS) Open(name string) (fs.File, error) {
	l.once.Do(func() {
		l.out, l.err = l.fn()
	})
	if l.err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: l.err}
	}
	return l.out.Open(name)
}

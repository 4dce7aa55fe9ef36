// Package progress shows a progress bar while build output is written.
package progress

import (
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// Bar is a progress bar whose maximum can grow while work is discovered.
// A nil *Bar is valid and does nothing.
type Bar struct {
	mu  sync.Mutex
	bar *progressbar.ProgressBar
	max int
}

// New returns a bar writing to w, or nil when disabled.
func New(w io.Writer, description string, enabled bool) *Bar {
	if !enabled {
		return nil
	}
	return &Bar{
		bar: progressbar.NewOptions(0,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(description),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		),
	}
}

// AddMax grows the total by n.
func (b *Bar) AddMax(n int) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.max += n
	b.bar.ChangeMax(b.max)
}

// Add advances the bar by n.
func (b *Bar) Add(n int) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = b.bar.Add(n)
}

// Finish completes the bar.
func (b *Bar) Finish() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = b.bar.Finish()
}

package progress

import (
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// Bar tracks completed project/provider pairs. A nil *Bar is valid and does
// nothing, so callers do not need to check whether progress is enabled.
type Bar struct {
	mu  sync.Mutex
	bar *progressbar.ProgressBar
	max int
}

// New returns a bar rendering to w. The maximum grows with AddMax.
func New(w io.Writer, description string) *Bar {
	bar := progressbar.NewOptions(0,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionClearOnFinish(),
	)
	return &Bar{bar: bar}
}

func (b *Bar) AddMax(n int) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.max += n
	b.bar.ChangeMax(b.max)
}

func (b *Bar) Add(n int) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = b.bar.Add(n)
}

func (b *Bar) Finish() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = b.bar.Finish()
}

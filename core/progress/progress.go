package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// Reporter draws one bar per stage.
type Reporter struct {
	mu      sync.Mutex
	out     io.Writer
	enabled bool
	bar     *progressbar.ProgressBar
}

// New returns a Reporter writing to out. A disabled Reporter ignores every call.
func New(out io.Writer, enabled bool) *Reporter {
	return &Reporter{out: out, enabled: enabled}
}

// StageStarted opens a bar for total items. A stage without items gets no bar.
func (r *Reporter) StageStarted(stage string, total int) {
	if !r.enabled {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.finishLocked()
	if total <= 0 {
		return
	}
	out := r.out
	r.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(stage),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(out) }),
	)
}

// Advance moves the current bar by n items.
func (r *Reporter) Advance(_ string, n int) {
	if !r.enabled {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bar != nil {
		_ = r.bar.Add(n)
	}
}

// StageFinished completes the current bar.
func (r *Reporter) StageFinished(_ string) {
	if !r.enabled {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.finishLocked()
}

func (r *Reporter) finishLocked() {
	if r.bar == nil {
		return
	}
	if !r.bar.IsFinished() {
		_ = r.bar.Finish()
	}
	r.bar = nil
}

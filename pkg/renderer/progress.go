package renderer

import (
	"sync/atomic"
	"time"

	"github.com/df07/liar-gi/pkg/core"
)

// progressInterval bounds how often a ProgressReporter logs while
// work is in flight. Individual Add calls are cheap atomic increments;
// only the ticker goroutine formats and logs.
const progressInterval = 2 * time.Second

// ProgressReporter logs throttled "label: done/total" progress from
// concurrent callers, and logs one final "label: done/total" line on
// Close even if the ticker hasn't fired since the last Add. That line
// carries the exact count Add reached; Close does not raise the count
// to total, so a pass that stops early ends below total. Grounded on the
// teacher's progressive raytracer pass-completion logging, generalized
// from a per-pass callback to a free-running counter suitable for a
// single long emission pass.
type ProgressReporter struct {
	logger core.Logger
	label  string
	total  int64
	done   int64

	stop chan struct{}
	wg   chan struct{}
}

// NewProgressReporter starts a reporter that logs via logger under
// label, out of total expected units of work.
func NewProgressReporter(logger core.Logger, label string, total int) *ProgressReporter {
	r := &ProgressReporter{
		logger: logger,
		label:  label,
		total:  int64(total),
		stop:   make(chan struct{}),
		wg:     make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *ProgressReporter) run() {
	defer close(r.wg)
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.logProgress()
		case <-r.stop:
			return
		}
	}
}

// Add records n additional completed units of work.
func (r *ProgressReporter) Add(n int) {
	atomic.AddInt64(&r.done, int64(n))
}

func (r *ProgressReporter) logProgress() {
	done := atomic.LoadInt64(&r.done)
	if r.logger == nil {
		return
	}
	r.logger.Printf("%s: %d/%d", r.label, done, r.total)
}

// Close stops the ticker goroutine and emits one final line reflecting
// whatever count Add last reached, so the reporter always ends at an
// exact snapshot rather than a possibly-stale throttled one.
func (r *ProgressReporter) Close() {
	close(r.stop)
	<-r.wg
	r.logProgress()
}

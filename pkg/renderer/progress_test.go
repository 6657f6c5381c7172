package renderer

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type capturingLogger struct {
	mu   sync.Mutex
	logs []string
}

func (l *capturingLogger) Printf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = append(l.logs, fmt.Sprintf(format, args...))
}

func (l *capturingLogger) last() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.logs) == 0 {
		return ""
	}
	return l.logs[len(l.logs)-1]
}

func TestProgressReporter_CloseEmitsFinalExactCount(t *testing.T) {
	logger := &capturingLogger{}
	r := NewProgressReporter(logger, "test pass", 100)

	r.Add(37)
	r.Add(13)
	r.Close()

	assert.Equal(t, "test pass: 50/100", logger.last())
}

func TestProgressReporter_CloseIsSafeWithNoWork(t *testing.T) {
	logger := &capturingLogger{}
	r := NewProgressReporter(logger, "empty pass", 0)
	r.Close()
	assert.Equal(t, "empty pass: 0/0", logger.last())
}

package core

import "fmt"

// DefaultLogger implements Logger by writing to stdout, mirroring the
// renderer's own DefaultLogger so library users get sensible behavior
// without wiring anything.
type DefaultLogger struct{}

func (dl *DefaultLogger) Printf(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// NewDefaultLogger creates a stdout Logger.
func NewDefaultLogger() Logger {
	return &DefaultLogger{}
}

// NopLogger discards everything. Useful in tests and benchmarks where the
// diagnostic line on emission truncation (§7) would otherwise spam output.
type NopLogger struct{}

func (NopLogger) Printf(format string, args ...interface{}) {}

package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	loggerMu sync.RWMutex
	logger   = log.NewWithOptions(os.Stderr, log.Options{
		Level:           log.InfoLevel,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
)

// Configure updates the process-global logger settings.
// Call this early from the CLI.
func Configure(verbose bool) {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if verbose {
		logger.SetLevel(log.DebugLevel)
		logger.SetReportCaller(true)
	} else {
		logger.SetLevel(log.InfoLevel)
		logger.SetReportCaller(false)
	}
	logger.SetReportTimestamp(true)
	logger.SetTimeFormat(time.RFC3339)
}

// L returns the shared logger instance.
func L() *log.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// For returns a child of the shared logger tagged with a stage prefix.
func For(prefix string) *log.Logger {
	return L().WithPrefix(prefix)
}

// Discard is a logger that drops everything. Used by tests.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// OrDefault returns l, or a prefixed shared logger when l is nil.
func OrDefault(l *log.Logger, prefix string) *log.Logger {
	if l != nil {
		return l
	}
	return For(prefix)
}

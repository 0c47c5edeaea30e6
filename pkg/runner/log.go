package runner

import (
	"fmt"
	"sync"

	"github.com/agentstation/utc"
	"github.com/rs/zerolog"

	"github.com/crosscheckhq/crosscheck/pkg/logging"
)

// LogEntry is one row of the run's execution log, carried into the
// report alongside the findings.
type LogEntry struct {
	Timestamp utc.Time `yaml:"timestamp"`
	Level     string   `yaml:"level"`
	Component string   `yaml:"component"`
	Message   string   `yaml:"message"`
}

// ExecutionLog collects timestamped entries across the run. It is safe
// for concurrent use; rule workers append to it while the orchestrator
// logs its own progress.
type ExecutionLog struct {
	mu      sync.Mutex
	entries []LogEntry
	logger  *zerolog.Logger
}

// NewExecutionLog creates an execution log that mirrors entries to the
// given structured logger. A nil logger mirrors to the default.
func NewExecutionLog(logger *zerolog.Logger) *ExecutionLog {
	if logger == nil {
		logger = logging.Default()
	}
	return &ExecutionLog{logger: logger}
}

// Infof appends an INFO entry.
func (l *ExecutionLog) Infof(component, format string, args ...any) {
	l.append("INFO", component, format, args...)
}

// Warnf appends a WARNING entry.
func (l *ExecutionLog) Warnf(component, format string, args ...any) {
	l.append("WARNING", component, format, args...)
}

// Errorf appends an ERROR entry.
func (l *ExecutionLog) Errorf(component, format string, args ...any) {
	l.append("ERROR", component, format, args...)
}

func (l *ExecutionLog) append(level, component, format string, args ...any) {
	entry := LogEntry{
		Timestamp: utc.Now(),
		Level:     level,
		Component: component,
		Message:   fmt.Sprintf(format, args...),
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	event := l.logger.Info()
	switch level {
	case "WARNING":
		event = l.logger.Warn()
	case "ERROR":
		event = l.logger.Error()
	}
	event.Str("component", component).Msg(entry.Message)
}

// Entries returns a copy of the accumulated entries in append order.
func (l *ExecutionLog) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := make([]LogEntry, len(l.entries))
	copy(entries, l.entries)
	return entries
}

package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RunLog owns the per-run log file. It satisfies Logger, fanning out to the
// file and optionally to stdout, and must be closed when the run ends.
type RunLog struct {
	Logger
	path string
	file *os.File
}

// NewRunLog creates a timestamped log file under dir and returns a logger
// writing to it. With console set, lines are mirrored to stdout.
func NewRunLog(dir string, level Level, console bool) (*RunLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("experiment_%s.log", time.Now().Format("20060102_150405")))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	sinks := []Logger{New(file, level)}
	if console {
		sinks = append(sinks, New(os.Stdout, level))
	}
	return &RunLog{Logger: Multi(sinks...), path: path, file: file}, nil
}

// Path returns the log file location.
func (r *RunLog) Path() string {
	return r.path
}

// Close flushes and closes the underlying file.
func (r *RunLog) Close() error {
	return r.file.Close()
}

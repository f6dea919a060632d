package logging

import (
	"log/slog"
	"strings"
)

// Writer is an io.Writer implementation that forwards external process output to slog.
type Writer struct {
	logger *slog.Logger
	source string
}

// NewWriter constructs a Writer bound to the provided logger. Source names the
// producing process in every record.
func NewWriter(logger *slog.Logger, source string) *Writer {
	return &Writer{logger: logger, source: source}
}

// Write logs every non-empty line of p at warn level.
func (w *Writer) Write(p []byte) (int, error) {
	if w.logger == nil {
		return len(p), nil
	}
	for _, line := range strings.Split(string(p), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		w.logger.Warn("process output", "source", w.source, "line", line)
	}
	return len(p), nil
}

package logger

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// OutputRouterHook sends user entries to stdout and operational entries to
// stderr, each with its own formatter
type OutputRouterHook struct {
	UserFormatter logrus.Formatter
	OpFormatter   logrus.Formatter
	UserWriter    io.Writer
	OpWriter      io.Writer

	// workers log concurrently; keep lines whole
	mu sync.Mutex
}

func NewOutputRouterHook() *OutputRouterHook {
	return &OutputRouterHook{
		UserFormatter: &CLIFormatter{DisableTimestamp: true, DisableLevel: true},
		OpFormatter:   &CLIFormatter{},
		UserWriter:    os.Stdout,
		OpWriter:      os.Stderr,
	}
}

func (h *OutputRouterHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *OutputRouterHook) Fire(entry *logrus.Entry) error {
	formatter, writer := h.OpFormatter, h.OpWriter

	if logType, _ := entry.Data["log_type"].(string); logType == string(UserLog) {
		formatter, writer = h.UserFormatter, h.UserWriter
		if emoji, ok := entry.Data["emoji"].(string); ok && emoji != "" {
			entry.Message = emoji + " " + entry.Message
		}
	}

	out, err := formatter.Format(entry)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = writer.Write(out)
	return err
}

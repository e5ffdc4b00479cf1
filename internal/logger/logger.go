package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	User *UserLogger // Clean messages for users (stdout) with emojis
	Op   *OpLogger   // Detailed operational logs (stderr)

	log *UnifiedLogger
)

func init() {
	log = GetLogger()
	User = &UserLogger{log: log}
	Op = &OpLogger{log: log}
}

type UserLogger struct {
	log *UnifiedLogger
}

type OpLogger struct {
	log *UnifiedLogger
}

func (u *UserLogger) with(emoji string) *logrus.Entry {
	if emoji == "" {
		return u.log.entry(WithLogType(UserLog))
	}
	return u.log.entry(WithLogType(UserLog), WithEmoji(emoji))
}

func (u *UserLogger) Info(msg string) {
	u.with("").Info(msg)
}

func (u *UserLogger) Infof(format string, args ...interface{}) {
	u.with("").Infof(format, args...)
}

func (u *UserLogger) Error(msg string) {
	u.with("❌").Error(msg)
}

func (u *UserLogger) Errorf(format string, args ...interface{}) {
	u.with("❌").Errorf(format, args...)
}

func (u *UserLogger) Warn(msg string) {
	u.with("⚠️").Warn(msg)
}

func (u *UserLogger) Warnf(format string, args ...interface{}) {
	u.with("⚠️").Warnf(format, args...)
}

// Starting announces the start of a run
func (u *UserLogger) Starting(msg string) {
	u.with("🚀").Info(msg)
}

func (u *UserLogger) Success(msg string) {
	u.with("✅").Info(msg)
}

func (u *UserLogger) Successf(format string, args ...interface{}) {
	u.with("✅").Infof(format, args...)
}

// Framef reports per-frame progress
func (u *UserLogger) Framef(format string, args ...interface{}) {
	u.with("🎞️").Infof(format, args...)
}

// Plan reports graph loading and validation
func (u *UserLogger) Plan(msg string) {
	u.with("📋").Info(msg)
}

func (u *UserLogger) Planf(format string, args ...interface{}) {
	u.with("📋").Infof(format, args...)
}

// Summary precedes the end-of-run report
func (u *UserLogger) Summary(msg string) {
	u.with("📊").Info(msg)
}

func (o *OpLogger) Info(msg string) {
	o.log.entry(WithLogType(OpLog)).Info(msg)
}

func (o *OpLogger) Infof(format string, args ...interface{}) {
	o.log.entry(WithLogType(OpLog)).Infof(format, args...)
}

func (o *OpLogger) Error(msg string) {
	o.log.entry(WithLogType(OpLog)).Error(msg)
}

func (o *OpLogger) Errorf(format string, args ...interface{}) {
	o.log.entry(WithLogType(OpLog)).Errorf(format, args...)
}

func (o *OpLogger) Warn(msg string) {
	o.log.entry(WithLogType(OpLog)).Warn(msg)
}

func (o *OpLogger) Warnf(format string, args ...interface{}) {
	o.log.entry(WithLogType(OpLog)).Warnf(format, args...)
}

func (o *OpLogger) Debug(msg string) {
	o.log.entry(WithLogType(OpLog)).Debug(msg)
}

func (o *OpLogger) Debugf(format string, args ...interface{}) {
	o.log.entry(WithLogType(OpLog)).Debugf(format, args...)
}

func (o *OpLogger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return o.log.entry(append(WithFields(fields), WithLogType(OpLog))...)
}

// CLIFormatter provides clean output for CLI applications
type CLIFormatter struct {
	DisableTimestamp bool
	DisableLevel     bool
	DisableColors    bool
}

// routing fields never printed as key=value
var internalFields = map[string]bool{"log_type": true, "emoji": true}

func (f *CLIFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer

	if f.DisableLevel && f.DisableTimestamp {
		b.WriteString(entry.Message)
		b.WriteByte('\n')
		return b.Bytes(), nil
	}

	if !f.DisableTimestamp {
		b.WriteString(entry.Time.Format("15:04:05.000"))
		b.WriteByte(' ')
	}

	if !f.DisableLevel {
		levelColor, resetColor := "", ""
		if !f.DisableColors {
			switch entry.Level {
			case logrus.ErrorLevel:
				levelColor = "\033[31m"
			case logrus.WarnLevel:
				levelColor = "\033[33m"
			case logrus.InfoLevel:
				levelColor = "\033[36m"
			case logrus.DebugLevel:
				levelColor = "\033[37m"
			}
			resetColor = "\033[0m"
		}
		b.WriteString(levelColor)
		b.WriteString(strings.ToUpper(entry.Level.String()))
		b.WriteString(resetColor)
		b.WriteString(": ")
	}

	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if !internalFields[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

// Setup configures levels and output routing. LOG_MODE (quiet, verbose,
// debug) and LOG_FORMAT (json, text) override the flags.
func Setup(verbose bool, jsonLogs bool, quiet bool) {
	switch os.Getenv("LOG_MODE") {
	case "quiet":
		quiet, verbose = true, false
	case "verbose", "debug":
		verbose, quiet = true, false
	}
	switch os.Getenv("LOG_FORMAT") {
	case "json":
		jsonLogs = true
	case "text":
		jsonLogs = false
	}

	level := logrus.InfoLevel
	if quiet {
		level = logrus.ErrorLevel
	} else if verbose {
		level = logrus.DebugLevel
	}

	hook := NewOutputRouterHook()
	switch {
	case jsonLogs:
		hook.UserFormatter = &logrus.JSONFormatter{}
		hook.OpFormatter = &logrus.JSONFormatter{}
	case verbose:
		hook.OpFormatter = &logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   isatty.IsTerminal(os.Stderr.Fd()),
		}
	default:
		hook.OpFormatter = &CLIFormatter{
			DisableTimestamp: true,
			DisableColors:    !isatty.IsTerminal(os.Stderr.Fd()),
		}
	}
	ConfigureHook(level, hook)
}

// ConfigureHook routes every entry through hook at the given level. Output
// goes only through the hook.
func ConfigureHook(level logrus.Level, hook *OutputRouterHook) {
	l := GetLogger()
	l.Configure(io.Discard, level, &logrus.TextFormatter{})

	internal := l.GetInternalLogger()
	internal.ReplaceHooks(make(logrus.LevelHooks))
	internal.AddHook(hook)
}

// L returns the unified logger instance
func L() *UnifiedLogger {
	return log
}

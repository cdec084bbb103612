// Package log is the leveled logger of the plotter. Messages go to stderr,
// a rotated file and syslog, as selected by command line flags.
package log

import (
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"log/syslog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LOG_TRACE is below debug; trace lines always carry the source location.
const LOG_TRACE = syslog.LOG_DEBUG + 1

const (
	colorReset = "\033[0m"
	colorRed   = "\033[1;31m"
	colorGreen = "\033[1;32m"
	colorAmber = "\033[0;33m"
	colorBlue  = "\033[0;34m"
	colorDim   = "\033[0;32m"
)

type level struct {
	prio  syslog.Priority
	name  string
	color string
	emit  func(*syslog.Writer, string) error
}

var levels = []level{
	{syslog.LOG_EMERG, "EMERGENCY", colorReset, (*syslog.Writer).Emerg},
	{syslog.LOG_ALERT, "ALERT", colorGreen, (*syslog.Writer).Alert},
	{syslog.LOG_CRIT, "CRITICAL", colorRed, (*syslog.Writer).Crit},
	{syslog.LOG_ERR, "ERROR", colorRed, (*syslog.Writer).Err},
	{syslog.LOG_WARNING, "WARNING", colorAmber, (*syslog.Writer).Warning},
	{syslog.LOG_NOTICE, "NOTICE", colorReset, (*syslog.Writer).Notice},
	{syslog.LOG_INFO, "INFO", colorBlue, (*syslog.Writer).Info},
	{syslog.LOG_DEBUG, "DEBUG", colorDim, (*syslog.Writer).Debug},
	{LOG_TRACE, "TRACE", colorDim, (*syslog.Writer).Debug},
}

var unknownLevel = level{name: "UNKNOWN", color: colorReset, emit: (*syslog.Writer).Err}

func levelOf(prio syslog.Priority) level {
	for _, l := range levels {
		if l.prio == prio {
			return l
		}
	}
	return unknownLevel
}

var flags struct {
	stderr  bool
	syslog  bool
	file    string
	fileMB  int
	fileAge int
	level   string
	srcloc  bool
}

var spewConfig = spew.ConfigState{Indent: "  ", SortKeys: true, MaxDepth: 3}

var (
	outMu sync.RWMutex
	out   *Logger
)

func init() {
	flag.BoolVar(&flags.stderr, "stdlog", false, "Write log to stderr?")
	flag.BoolVar(&flags.syslog, "syslog", false, "Write log to syslog?")
	flag.BoolVar(&flags.srcloc, "srcloc", true, "Find and write file:lineno to log?")
	flag.StringVar(&flags.file, "filelog", "", "Write log to this file, rotated")
	flag.IntVar(&flags.fileMB, "filelog-max-mb", 50, "Rotate the file log after this many megabytes")
	flag.IntVar(&flags.fileAge, "filelog-max-age", 14, "Keep rotated file logs for this many days")
	flag.StringVar(&flags.level, "log", "info", "Set the logging level")
}

// ParseLevel maps a level name as accepted by -log to a priority.
func ParseLevel(name string) (syslog.Priority, bool) {
	name = strings.ToUpper(name)
	for _, l := range levels {
		if l.name == name {
			return l.prio, true
		}
	}
	return 0, false
}

// Logger writes leveled lines to its sinks. It is safe for concurrent use.
type Logger struct {
	mu      sync.Mutex
	level   syslog.Priority
	srcloc  bool
	syslogs []*syslog.Writer
	texts   []io.Writer
}

// Init builds the default logger from the command line flags. It must run
// after flag.Parse.
func Init(procname string) {
	prio, ok := ParseLevel(flags.level)
	if !ok {
		stdlog.Fatalf("Unknown logging level: %v", flags.level)
	}
	l := &Logger{level: prio, srcloc: flags.srcloc}
	if flags.stderr {
		l.texts = append(l.texts, os.Stderr)
	}
	if flags.file != "" {
		l.texts = append(l.texts, &lumberjack.Logger{
			Filename: flags.file,
			MaxSize:  flags.fileMB,
			MaxAge:   flags.fileAge,
		})
	}
	if flags.syslog {
		w, err := syslog.Dial("", "", syslog.LOG_LOCAL0, procname)
		if err != nil {
			stdlog.Fatalf("Could not dial syslog: %v", err)
		}
		l.syslogs = append(l.syslogs, w)
	}
	if len(l.texts) == 0 && len(l.syslogs) == 0 {
		l.texts = append(l.texts, os.Stderr)
	}
	install(l)
}

// SetOutput installs a text-only logger writing to w. Tests use it to capture output.
func SetOutput(w io.Writer, prio syslog.Priority) {
	install(&Logger{level: prio, texts: []io.Writer{w}})
}

func install(l *Logger) {
	outMu.Lock()
	out = l
	outMu.Unlock()
}

func current() *Logger {
	outMu.RLock()
	defer outMu.RUnlock()
	return out
}

// Spew dumps values for debugging.
func Spew(obj ...interface{}) string {
	return spewConfig.Sdump(obj...)
}

func (l *Logger) Enabled(prio syslog.Priority) bool {
	return prio <= l.level
}

func (l *Logger) Log(prio syslog.Priority, msgFmt string, args ...interface{}) {
	if !l.Enabled(prio) {
		return
	}
	lv := levelOf(prio)
	var b strings.Builder
	b.WriteString(lv.color + lv.name + colorReset + ": ")
	b.WriteString(time.Now().Format(time.RFC3339Nano))
	if l.srcloc || prio == LOG_TRACE {
		file, line := caller()
		fmt.Fprintf(&b, " (%v:%v)", file, line)
	}
	b.WriteByte(' ')
	b.WriteString(spewConfig.Sprintf(msgFmt, fmtArgs(msgFmt, args)...))
	line := b.String()

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, w := range l.syslogs {
		if err := lv.emit(w, line); err != nil {
			stdlog.Printf("Error returned by syslog: %v", err)
		}
	}
	for _, w := range l.texts {
		io.WriteString(w, line+"\n")
	}
}

// fmtArgs trims args to the number of verbs in format, so trailing context
// objects passed for the trace never show up as %!(EXTRA ...).
func fmtArgs(format string, args []interface{}) []interface{} {
	verbs := 0
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}
		if i+1 < len(format) && format[i+1] == '%' {
			i++
			continue
		}
		verbs++
	}
	if verbs > len(args) {
		verbs = len(args)
	}
	return args[:verbs]
}

// caller finds the first frame outside this file.
func caller() (string, int) {
	for skip := 1; ; skip++ {
		_, file, line, ok := runtime.Caller(skip)
		if !ok {
			return "", -1
		}
		if idx := strings.LastIndex(file, "plotter/"); idx >= 0 {
			file = file[idx+len("plotter/"):]
		}
		if file != "log/log.go" {
			return file, line
		}
	}
}

func logAt(prio syslog.Priority, msgFmt string, args []interface{}) {
	if l := current(); l != nil {
		l.Log(prio, msgFmt, args...)
	}
}

func (l *Logger) TraceMsg(msgFmt string, args ...interface{}) { l.Log(LOG_TRACE, msgFmt, args...) }
func (l *Logger) Crit(msgFmt string, args ...interface{})     { l.Log(syslog.LOG_CRIT, msgFmt, args...) }
func (l *Logger) Error(msgFmt string, args ...interface{})    { l.Log(syslog.LOG_ERR, msgFmt, args...) }
func (l *Logger) Warn(msgFmt string, args ...interface{})     { l.Log(syslog.LOG_WARNING, msgFmt, args...) }
func (l *Logger) Notice(msgFmt string, args ...interface{})   { l.Log(syslog.LOG_NOTICE, msgFmt, args...) }
func (l *Logger) Info(msgFmt string, args ...interface{})     { l.Log(syslog.LOG_INFO, msgFmt, args...) }
func (l *Logger) Debug(msgFmt string, args ...interface{})    { l.Log(syslog.LOG_DEBUG, msgFmt, args...) }

func Log(prio syslog.Priority, msgFmt string, args ...interface{}) { logAt(prio, msgFmt, args) }
func TraceMsg(msgFmt string, args ...interface{})                  { logAt(LOG_TRACE, msgFmt, args) }
func Crit(msgFmt string, args ...interface{})                      { logAt(syslog.LOG_CRIT, msgFmt, args) }
func Error(msgFmt string, args ...interface{})                     { logAt(syslog.LOG_ERR, msgFmt, args) }
func Warn(msgFmt string, args ...interface{})                      { logAt(syslog.LOG_WARNING, msgFmt, args) }
func Notice(msgFmt string, args ...interface{})                    { logAt(syslog.LOG_NOTICE, msgFmt, args) }
func Info(msgFmt string, args ...interface{})                      { logAt(syslog.LOG_INFO, msgFmt, args) }
func Debug(msgFmt string, args ...interface{})                     { logAt(syslog.LOG_DEBUG, msgFmt, args) }

// Fatal logs at critical level and exits.
func Fatal(msgFmt string, args ...interface{}) {
	if l := current(); l != nil {
		l.Log(syslog.LOG_CRIT, msgFmt, args...)
		os.Exit(1)
	}
	stdlog.Fatalf(msgFmt, args...)
}

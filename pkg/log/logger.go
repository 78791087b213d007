// Package log provides named, leveled loggers backed by go-logging and an
// adapter to the core.Logger interface used by the prefilter packages.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/op/go-logging"

	"github.com/df07/go-envmap-prefilter/pkg/core"
)

// Level is a logging verbosity threshold, from most to least verbose
type Level int

const (
	Debug Level = iota
	Info
	Notice
	Warning
	Error
)

// backendLevels maps each Level to its go-logging counterpart
var backendLevels = [...]logging.Level{
	Debug:   logging.DEBUG,
	Info:    logging.INFO,
	Notice:  logging.NOTICE,
	Warning: logging.WARNING,
	Error:   logging.ERROR,
}

func (l Level) backend() logging.Level {
	if l < Debug || int(l) >= len(backendLevels) {
		return logging.NOTICE
	}
	return backendLevels[l]
}

func (l Level) String() string {
	return l.backend().String()
}

// records look like "[15:04:05.000] [scheduler] [INFO] message"
var recordFormat = logging.MustStringFormatter(
	`%{color}[%{time:15:04:05.000}] [%{module}] [%{level}]%{color:reset} %{message}`,
)

var (
	backendMu sync.Mutex // guards backend
	backend   logging.LeveledBackend
)

// Logger writes leveled records for one named module. *logging.Logger
// satisfies it.
type Logger interface {
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Notice(v ...interface{})
	Noticef(format string, v ...interface{})
	Warning(v ...interface{})
	Warningf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
}

// New returns the logger of module name
func New(name string) Logger {
	return logging.MustGetLogger(name)
}

// SetSink redirects every module to w, keeping the current threshold
func SetSink(w io.Writer) {
	backendMu.Lock()
	defer backendMu.Unlock()

	threshold := Notice.backend()
	if backend != nil {
		threshold = backend.GetLevel("")
	}

	formatted := logging.NewBackendFormatter(logging.NewLogBackend(w, "", 0), recordFormat)
	backend = logging.AddModuleLevel(formatted)
	backend.SetLevel(threshold, "")
	logging.SetBackend(backend)
}

// SetLevel drops records below level. Unknown levels fall back to Notice.
func SetLevel(level Level) {
	backendMu.Lock()
	defer backendMu.Unlock()
	backend.SetLevel(level.backend(), "")
}

// printfLogger adapts a named go-logging logger to core.Logger
type printfLogger struct {
	logger Logger
}

// NewPrintfLogger returns a core.Logger that writes Printf-style messages at
// Info level to the named go-logging module.
func NewPrintfLogger(name string) core.Logger {
	return &printfLogger{logger: New(name)}
}

// Printf implements core.Logger. The backend terminates every record with a
// newline, so a trailing one in the message is dropped.
func (pl *printfLogger) Printf(format string, args ...interface{}) {
	pl.logger.Info(strings.TrimRight(fmt.Sprintf(format, args...), "\n"))
}

func init() {
	SetSink(os.Stdout)
	SetLevel(Notice)
}

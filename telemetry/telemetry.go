// A simple telemetry package.
// Counters have no exporter yet, they are only written to the log.
package telemetry

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type TelemetryData struct {
	logger *logrus.Logger

	counterLock sync.Mutex
	counters    map[string]int
}

var data = TelemetryData{
	logger:   newLogger(os.Stdout),
	counters: make(map[string]int),
}

type utcFormatter struct {
	logrus.Formatter
}

func (f utcFormatter) Format(e *logrus.Entry) ([]byte, error) {
	e.Time = e.Time.UTC()
	return f.Formatter.Format(e)
}

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(utcFormatter{&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		DisableColors:   true,
	}})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetOutput redirects log output, mostly for tests
func SetOutput(w io.Writer) {
	data.logger.SetOutput(w)
}

// SetTrace turns Trace messages on or off
func SetTrace(on bool) {
	if on {
		data.logger.SetLevel(logrus.DebugLevel)
	} else {
		data.logger.SetLevel(logrus.InfoLevel)
	}
}

// SetJSON switches between json and plain text log lines
func SetJSON(on bool) {
	if on {
		data.logger.SetFormatter(utcFormatter{&logrus.JSONFormatter{TimestampFormat: time.RFC3339}})
	} else {
		data.logger.SetFormatter(utcFormatter{&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			DisableColors:   true,
		}})
	}
}

func Log(format string, args ...any) {
	data.logger.Infof(format, args...)
}

func Trace(format string, args ...any) {
	data.logger.Debugf(format, args...)
}

func Error(err error, format string, args ...any) {
	data.logger.WithError(err).Error(fmt.Sprintf(format, args...))
	Increment("errors", 1)
}

// Printer adapts the telemetry log for libraries that log through Printf,
// such as the gorm logger. Lines are written at Level.
type Printer struct {
	Level logrus.Level
}

func (p Printer) Printf(format string, args ...any) {
	data.logger.Logf(p.Level, format, args...)
}

// Request logs essential information about an HTTP request
func Request(r *http.Request, format string, args ...any) {
	data.logger.WithFields(logrus.Fields{
		"method": r.Method,
		"url":    r.URL.String(),
	}).Info(fmt.Sprintf(format, args...))
}

// Increment increases a count, thread-safe
func Increment(name string, n int) {
	data.counterLock.Lock()
	defer data.counterLock.Unlock()
	data.counters[name] += n
}

func GetCounter(name string) int {
	data.counterLock.Lock()
	defer data.counterLock.Unlock()
	return data.counters[name]
}

func LogCounters() {
	s := make([]string, 0)
	data.counterLock.Lock()
	for k, v := range data.counters {
		s = append(s, fmt.Sprintf("%s=%d", k, v))
	}
	data.counterLock.Unlock()
	if len(s) == 0 {
		s = append(s, "no counters were recorded")
	}
	Log(strings.Join(s, ", "))
}

// Package buildlog builds the console logger used for build progress.
//
// Records are rendered as
//
//	2024-05-01 12:00:00,123 | BigDouble_PyBuilder | INFO $ message
//
// Each call to New returns an independent logger, so running the build
// twice in one process never duplicates output.
package buildlog

import (
	"bytes"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// DefaultName is the logger name printed in every record.
const DefaultName = "BigDouble_PyBuilder"

// TimestampFormat renders milliseconds after a comma.
const TimestampFormat = "2006-01-02 15:04:05,000"

// Formatter renders "timestamp | name | LEVEL $ message". Fields attached
// to the entry are not printed.
type Formatter struct {
	Name string
}

// Format implements logrus.Formatter.
func (f *Formatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(e.Time.Format(TimestampFormat))
	b.WriteString(" | ")
	b.WriteString(f.Name)
	b.WriteString(" | ")
	b.WriteString(levelName(e.Level))
	b.WriteString(" $ ")
	b.WriteString(e.Message)
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func levelName(l logrus.Level) string {
	switch l {
	case logrus.WarnLevel:
		return "WARNING"
	case logrus.FatalLevel, logrus.PanicLevel:
		return "CRITICAL"
	default:
		return strings.ToUpper(l.String())
	}
}

// New returns a logger writing formatted records to w at the given level.
// An empty name falls back to DefaultName.
func New(w io.Writer, name string, level logrus.Level) *logrus.Logger {
	if name == "" {
		name = DefaultName
	}
	return &logrus.Logger{
		Out:       w,
		Formatter: &Formatter{Name: name},
		Hooks:     make(logrus.LevelHooks),
		Level:     level,
	}
}

// ParseLevel converts a level name to a logrus level. Unknown or empty
// names map to debug, the verbosity the build runs at.
func ParseLevel(level string) logrus.Level {
	l, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.DebugLevel
	}
	return l
}

// Discard returns a logger that drops every record.
func Discard() *logrus.Logger {
	return New(io.Discard, DefaultName, logrus.PanicLevel)
}

package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Init configures the global logrus logger: JSON output on stdout with
// stable field names for log collection.
func Init(level string) {
	logrus.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	logrus.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
		logrus.WithField("level", level).Warn("unknown log level, falling back to info")
	}
	logrus.SetLevel(lvl)
}

// New returns an entry tagged with the component name.
func New(service string) *logrus.Entry {
	return logrus.WithField("service", service)
}

// Discard returns an entry that writes nowhere. Used by tests.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

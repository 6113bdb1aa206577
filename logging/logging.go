// Package logging wraps logrus with the small set of leveled helpers the
// rest of the storage engine calls, mirroring the package-level logger
// convention used throughout the retrieved corpus's server code.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

var log = newDefault()

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// Configure sets the active log level from a name such as "debug", "info",
// "warn", or "error". An unrecognized level leaves the current level
// unchanged.
func Configure(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return
	}
	log.SetLevel(lvl)
}

// Debugf logs routine page traffic: buffer pool fetches and new pages,
// disk manager page reuse.
func Debugf(format string, args ...interface{}) {
	log.Debugf(format, args...)
}

// Infof logs coarse lifecycle events: pool construction, index open/create.
func Infof(format string, args ...interface{}) {
	log.Infof(format, args...)
}

// Warnf logs recoverable but noteworthy conditions, such as buffer pool
// exhaustion.
func Warnf(format string, args ...interface{}) {
	log.Warnf(format, args...)
}

// Errorf logs unrecoverable disk or I/O failures.
func Errorf(format string, args ...interface{}) {
	log.Errorf(format, args...)
}

package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type Logger struct {
	*logrus.Logger
}

// NewLogger logs to stderr so that rendered schemas on stdout stay clean
func NewLogger(verbose bool) *Logger {
	return New(os.Stderr, verbose)
}

func New(w io.Writer, verbose bool) *Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}

	return &Logger{Logger: log}
}

// Discard drops everything; used when library callers pass no logger
func Discard() *Logger {
	return New(io.Discard, false)
}

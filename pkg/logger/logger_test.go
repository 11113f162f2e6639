package logger

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewLoggerLevel(t *testing.T) {
	assert.Equal(t, logrus.InfoLevel, NewLogger(false).GetLevel())
	assert.Equal(t, logrus.DebugLevel, NewLogger(true).GetLevel())
}

func TestNewWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, true)

	log.WithField("table", "users").Debug("introspected")

	out := buf.String()
	assert.Contains(t, out, "level=debug")
	assert.Contains(t, out, "table=users")
	assert.Contains(t, out, `msg=introspected`)
}

func TestQuietDropsDebug(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, false).Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestDiscard(t *testing.T) {
	log := Discard()
	log.Info("nothing")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}

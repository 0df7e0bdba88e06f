package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

// testAppender logs through tb.Log so that output is attributed to the test that produced it.
type testAppender struct {
	tb      testing.TB
	encoder zapcore.Encoder
}

// NewTestAppender returns an Appender writing console lines to tb.
func NewTestAppender(tb testing.TB) Appender {
	return &testAppender{tb: tb, encoder: newConsoleEncoder()}
}

func (a *testAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	a.tb.Helper()
	buf, err := a.encoder.EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	defer buf.Free()
	a.tb.Log(strings.TrimSuffix(buf.String(), "\n"))
	return nil
}

func (a *testAppender) Sync() error {
	return nil
}

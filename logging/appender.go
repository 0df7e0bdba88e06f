package logging

import (
	"io"
	"os"

	"go.uber.org/zap/zapcore"
)

// timeFormat is the timestamp layout of console lines.
const timeFormat = "2006-01-02T15:04:05.000Z0700"

// Appender receives every entry a logger emits at or above its level. A zapcore.Core is an
// Appender, which is how the observed test logger captures entries.
type Appender interface {
	Write(zapcore.Entry, []zapcore.Field) error
	Sync() error
}

// newConsoleEncoder writes tab separated lines: time, level, logger name, caller, message
// and the fields as a JSON object.
func newConsoleEncoder() zapcore.Encoder {
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "ts",
		LevelKey:         "level",
		NameKey:          "logger",
		CallerKey:        "caller",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeTime:       zapcore.TimeEncoderOfLayout(timeFormat),
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		ConsoleSeparator: "\t",
	})
}

type writerAppender struct {
	w       io.Writer
	encoder zapcore.Encoder
}

// NewWriterAppender returns an Appender writing console lines to w.
func NewWriterAppender(w io.Writer) Appender {
	return &writerAppender{w: w, encoder: newConsoleEncoder()}
}

// NewStdoutAppender returns an Appender writing console lines to stdout.
func NewStdoutAppender() Appender {
	return NewWriterAppender(os.Stdout)
}

func (a *writerAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	buf, err := a.encoder.EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	defer buf.Free()
	_, err = a.w.Write(buf.Bytes())
	return err
}

func (a *writerAppender) Sync() error {
	return nil
}

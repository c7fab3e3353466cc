package logging

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
)

// DefaultTimeFormatStr is the timestamp layout of every rendered line.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

// Appender receives enabled log entries. It is the write half of zapcore.Core, so an observer
// core can be added directly.
type Appender interface {
	Write(zapcore.Entry, []zapcore.Field) error
	Sync() error
}

// WriterAppender renders entries as tab separated lines on an io.Writer. Writes are serialized,
// so the launcher can share the writer with child process output.
type WriterAppender struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterAppender returns an appender writing lines to w.
func NewWriterAppender(w io.Writer) *WriterAppender {
	return &WriterAppender{w: w}
}

func (appender *WriterAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	line, err := formatLine(entry, fields)
	if err != nil {
		return err
	}
	appender.mu.Lock()
	defer appender.mu.Unlock()
	_, err = fmt.Fprintln(appender.w, line)
	return err
}

func (appender *WriterAppender) Sync() error {
	if s, ok := appender.w.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

var fieldEncoderConfig = zapcore.EncoderConfig{SkipLineEnding: true}

// formatLine renders "time LEVEL name caller message {fields}". Fields keep their order. On an
// encoding error the line is returned without them.
func formatLine(entry zapcore.Entry, fields []zapcore.Field) (string, error) {
	parts := []string{
		entry.Time.Format(DefaultTimeFormatStr),
		entry.Level.CapitalString(),
		entry.LoggerName,
	}
	if entry.Caller.Defined {
		parts = append(parts, entry.Caller.TrimmedPath())
	}
	parts = append(parts, entry.Message)
	if len(fields) > 0 {
		buf, err := zapcore.NewJSONEncoder(fieldEncoderConfig).EncodeEntry(zapcore.Entry{}, fields)
		if err != nil {
			return strings.Join(parts, "\t"), err
		}
		parts = append(parts, buf.String())
		buf.Free()
	}
	return strings.Join(parts, "\t"), nil
}

package logging

import (
	"os"
	"slices"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// appenderCore lets zap loggers and libraries written against them, such as pexec, write through
// a Logger's appenders and level.
type appenderCore struct {
	imp    *impl
	fields []zapcore.Field
}

func (c *appenderCore) Enabled(level zapcore.Level) bool {
	return level >= c.imp.GetLevel().AsZap()
}

func (c *appenderCore) With(fields []zapcore.Field) zapcore.Core {
	return &appenderCore{imp: c.imp, fields: append(slices.Clip(c.fields), fields...)}
}

func (c *appenderCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *appenderCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	if c.imp.inUTC {
		entry.Time = entry.Time.UTC()
	}
	all := append(slices.Clip(c.fields), fields...)
	var err error
	for _, appender := range c.imp.appenders {
		err = multierr.Append(err, appender.Write(entry, all))
	}
	return err
}

func (c *appenderCore) Sync() error {
	return c.imp.Sync()
}

// AsZap returns a zap logger with this logger's name, level and appenders.
func (imp *impl) AsZap() *zap.SugaredLogger {
	return zap.New(&appenderCore{imp: imp}, zap.AddCaller()).Named(imp.name).Sugar()
}

func (imp *impl) Desugar() *zap.Logger {
	return imp.AsZap().Desugar()
}

// Fatal and friends log at ERROR, there is no fatal level, and exit.

func (imp *impl) Fatal(args ...interface{}) {
	imp.logArgs(ERROR, args)
	imp.exit()
}

func (imp *impl) Fatalf(template string, args ...interface{}) {
	imp.logf(ERROR, template, args)
	imp.exit()
}

func (imp *impl) Fatalw(msg string, kv ...interface{}) {
	imp.logw(ERROR, msg, kv)
	imp.exit()
}

func (imp *impl) exit() {
	//nolint:errcheck
	imp.Sync()
	os.Exit(1)
}

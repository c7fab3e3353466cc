package logging

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// impl fans every enabled statement out to its appenders. Subloggers share the appender slice
// but carry their own level.
type impl struct {
	name  string
	level AtomicLevel
	inUTC bool

	appenders []Appender
}

func (imp *impl) AddAppender(appender Appender) {
	imp.appenders = append(imp.appenders, appender)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

func (imp *impl) Sublogger(subname string) Logger {
	name := strings.TrimPrefix(imp.name+"."+subname, ".")
	return &impl{
		name:      name,
		level:     NewAtomicLevelAt(imp.level.Get()),
		inUTC:     imp.inUTC,
		appenders: imp.appenders,
	}
}

func (imp *impl) Sync() error {
	var err error
	for _, appender := range imp.appenders {
		err = multierr.Append(err, appender.Sync())
	}
	return err
}

func (imp *impl) enabled(level Level) bool {
	return level >= imp.level.Get()
}

// logArgs, logf and logw are only called by the exported level methods; write depends on that
// depth to find the caller.

func (imp *impl) logArgs(level Level, args []interface{}) {
	if imp.enabled(level) {
		imp.write(level, fmt.Sprint(args...), nil)
	}
}

func (imp *impl) logf(level Level, template string, args []interface{}) {
	if imp.enabled(level) {
		imp.write(level, fmt.Sprintf(template, args...), nil)
	}
}

func (imp *impl) logw(level Level, msg string, keysAndValues []interface{}) {
	if imp.enabled(level) {
		imp.write(level, msg, pairsToFields(keysAndValues))
	}
}

func (imp *impl) write(level Level, msg string, fields []zapcore.Field) {
	// write, log*, the exported method, then the caller.
	const callerDepth = 3
	entry := zapcore.Entry{
		Level:      level.AsZap(),
		Time:       time.Now(),
		LoggerName: imp.name,
		Message:    msg,
		Caller:     callerAt(callerDepth + 1),
	}
	if imp.inUTC {
		entry.Time = entry.Time.UTC()
	}
	for _, appender := range imp.appenders {
		if err := appender.Write(entry, fields); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

var errUnpairedKey = errors.New("unpaired log key")

// pairsToFields reads keysAndValues as alternating keys and values. A trailing key with no value
// is kept with an error value so the statement is not silently truncated.
func pairsToFields(keysAndValues []interface{}) []zapcore.Field {
	fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 == len(keysAndValues) {
			fields = append(fields, zap.Error(fmt.Errorf("%w: %s", errUnpairedKey, key)))
			break
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

// callerAt resolves the frame skip levels above itself, reported as "dir/file.go:line" by
// appenders.
func callerAt(skip int) zapcore.EntryCaller {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return zapcore.EntryCaller{}
	}
	caller := zapcore.EntryCaller{Defined: true, PC: pc, File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		caller.Function = fn.Name()
	}
	return caller
}

func (imp *impl) Debug(args ...interface{})                   { imp.logArgs(DEBUG, args) }
func (imp *impl) Debugf(template string, args ...interface{}) { imp.logf(DEBUG, template, args) }
func (imp *impl) Debugw(msg string, kv ...interface{})        { imp.logw(DEBUG, msg, kv) }

func (imp *impl) Info(args ...interface{})                   { imp.logArgs(INFO, args) }
func (imp *impl) Infof(template string, args ...interface{}) { imp.logf(INFO, template, args) }
func (imp *impl) Infow(msg string, kv ...interface{})        { imp.logw(INFO, msg, kv) }

func (imp *impl) Warn(args ...interface{})                   { imp.logArgs(WARN, args) }
func (imp *impl) Warnf(template string, args ...interface{}) { imp.logf(WARN, template, args) }
func (imp *impl) Warnw(msg string, kv ...interface{})        { imp.logw(WARN, msg, kv) }

func (imp *impl) Error(args ...interface{})                   { imp.logArgs(ERROR, args) }
func (imp *impl) Errorf(template string, args ...interface{}) { imp.logf(ERROR, template, args) }
func (imp *impl) Errorw(msg string, kv ...interface{})        { imp.logw(ERROR, msg, kv) }

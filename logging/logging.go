// Package logging contains the leveled, structured logger used across the launcher.
//
// Lines are rendered tab separated, for example:
//
//	2024-05-02T10:11:12.345Z	DEBUG	openarm-display.launch	launch/launcher.go:44	emitting process specs	{"arm_type":"v10"}
package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"go.viam.com/utils"
)

// Logger is the logging interface handed to every component. It is a utils.ZapCompatibleLogger, so
// it can be passed to go.viam.com/utils helpers such as pexec.
type Logger interface {
	utils.ZapCompatibleLogger

	// Sublogger returns a child logger named "<parent>.<subname>" sharing the parent's appenders.
	Sublogger(subname string) Logger
	SetLevel(level Level)
	GetLevel() Level
	AddAppender(appender Appender)
	Sync() error
	AsZap() *zap.SugaredLogger
}

func newImpl(name string, level Level, inUTC bool, appenders ...Appender) *impl {
	return &impl{name: name, level: NewAtomicLevelAt(level), inUTC: inUTC, appenders: appenders}
}

// NewBlankLogger returns a Debug+ logger in UTC with no appenders. Nothing is written until one is
// added.
func NewBlankLogger(name string) Logger {
	return newImpl(name, DEBUG, true)
}

// NewTestLogger returns a Debug+ logger writing to tb in local time.
func NewTestLogger(tb testing.TB) Logger {
	logger, _ := NewObservedTestLogger(tb)
	return logger
}

// NewObservedTestLogger is NewTestLogger that also records entries for assertions.
func NewObservedTestLogger(tb testing.TB) (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.LevelEnablerFunc(zapcore.DebugLevel.Enabled))
	return newImpl("", DEBUG, false, NewTestAppender(tb), core), logs
}

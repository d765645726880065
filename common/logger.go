// this code is adapted from https://github.com/ryogrid/SamehadaDB (common/logger.go)
package common

import (
	"sync"

	"go.uber.org/zap"
)

// LogLevel is a bitmask gate, same shape as the teacher's: a caller can
// enable e.g. only latch-acquisition tracing (OpFuncCall) without being
// flooded by buffer-pool noise (DebugInfo).
type LogLevel int32

const (
	DebugInfoDetail LogLevel = 1 << iota
	DebugInfo
	OpFuncCall
	Debugging
	Info
	Warn
	Error
	Fatal
)

// LogLevelSetting is the process-wide gate; ShPrintf only emits when
// level&LogLevelSetting is non-zero. Defaults to Info|Warn|Error|Fatal.
var LogLevelSetting = Info | Warn | Error | Fatal

var (
	loggerOnce sync.Once
	logger     *zap.SugaredLogger
)

func sugared() *zap.SugaredLogger {
	loggerOnce.Do(func() {
		// Debug level, so LogLevelSetting is the only filter on what ShPrintf
		// emits.
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		z, err := cfg.Build()
		if err != nil {
			z = zap.NewNop()
		}
		logger = z.Sugar()
	})
	return logger
}

// ShPrintf is the bitmask-gated log call used throughout the engine in
// place of fmt.Printf, so traces of e.g. every latch acquired during a
// B+tree traversal can be toggled on without touching call sites. kv is
// passed through to zap as structured key/value pairs (page_id, ...,
// txn_id, ...) rather than interpolated into a message string.
func ShPrintf(level LogLevel, msg string, kv ...interface{}) {
	if level&LogLevelSetting == 0 {
		return
	}
	l := sugared()
	switch {
	case level&Fatal != 0:
		l.Errorw(msg, kv...)
	case level&Error != 0:
		l.Errorw(msg, kv...)
	case level&Warn != 0:
		l.Warnw(msg, kv...)
	default:
		l.Debugw(msg, kv...)
	}
}

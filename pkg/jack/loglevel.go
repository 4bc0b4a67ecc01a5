package jack

import (
	"log/slog"
	"math"
)

// Levels below slog.LevelDebug and above slog.LevelError, so the full native
// scale can be addressed from slog.
const (
	LevelTrace = slog.LevelDebug - 4
	LevelOff   = slog.Level(math.MaxInt32)
)

// NativeLogLevel is the numeric scale of the native logging sink.
type NativeLogLevel int32

const (
	NativeTrace NativeLogLevel = iota
	NativeDebug
	NativeInfo
	NativeWarn
	NativeError
	NativeCritical
	NativeOff
)

func (l NativeLogLevel) String() string {
	switch l {
	case NativeTrace:
		return "trace"
	case NativeDebug:
		return "debug"
	case NativeInfo:
		return "info"
	case NativeWarn:
		return "warn"
	case NativeError:
		return "error"
	case NativeCritical:
		return "critical"
	case NativeOff:
		return "off"
	}
	return "?"
}

// NativeLevel maps an slog level onto the native scale. The mapping is total
// and order preserving: anything up to LevelTrace is trace, anything from
// LevelOff on is off, and levels between slog.LevelError and LevelOff are
// critical.
func NativeLevel(level slog.Level) NativeLogLevel {
	switch {
	case level <= LevelTrace:
		return NativeTrace
	case level <= slog.LevelDebug:
		return NativeDebug
	case level <= slog.LevelInfo:
		return NativeInfo
	case level <= slog.LevelWarn:
		return NativeWarn
	case level <= slog.LevelError:
		return NativeError
	case level < LevelOff:
		return NativeCritical
	}
	return NativeOff
}

// slogLevel is the level native messages of severity l are logged at.
func (l NativeLogLevel) slogLevel() slog.Level {
	switch l {
	case NativeTrace:
		return LevelTrace
	case NativeDebug:
		return slog.LevelDebug
	case NativeInfo:
		return slog.LevelInfo
	case NativeWarn:
		return slog.LevelWarn
	case NativeError:
		return slog.LevelError
	}
	return slog.LevelError + 4
}

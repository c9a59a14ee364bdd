package util

import (
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Logger is a nop global logger
var Logger = log.NewNopLogger()

// NewLogger returns a logfmt logger writing to w. Debug messages are
// dropped unless verbose is set.
func NewLogger(w io.Writer, verbose bool) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	if !verbose {
		return level.NewFilter(logger, level.AllowInfo())
	}
	return level.NewFilter(logger, level.AllowDebug())
}

// LoggerWithProfile returns a Logger that has information about the profile
// being processed in its details.
func LoggerWithProfile(path string, l log.Logger) log.Logger {
	return log.With(l, "profile", path)
}

package logging

import (
	"io"
	"os"

	gokitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// NewLogger creates a logfmt logger with timestamp and caller information.
// A nil writer logs to stdout.
func NewLogger(w io.Writer, debug bool) gokitlog.Logger {
	if w == nil {
		w = os.Stdout
	}
	allow := level.AllowInfo()
	if debug {
		allow = level.AllowDebug()
	}
	logger := level.NewFilter(gokitlog.NewLogfmtLogger(gokitlog.NewSyncWriter(w)), allow)
	// The caller valuer must wrap the filter so its depth points at the call site.
	return gokitlog.With(logger, "ts", gokitlog.DefaultTimestampUTC, "caller", gokitlog.DefaultCaller)
}

// Component returns a child logger tagged with the component name
func Component(logger gokitlog.Logger, name string) gokitlog.Logger {
	return gokitlog.With(logger, "component", name)
}

// Package logging builds the gommon logger shared by echo and the
// application.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/labstack/gommon/log"
)

const textHeader = "${time_rfc3339} ${level} ${short_file}:${line}"

const jsonHeader = `{"time":"${time_rfc3339_nano}","level":"${level}","prefix":"${prefix}","file":"${short_file}","line":"${line}"}`

// New returns a logger writing to w (stdout when nil). format "text" uses a
// human readable header, anything else emits JSON records.
func New(prefix, level, format string, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stdout
	}
	l := log.New(prefix)
	l.SetOutput(w)
	l.SetLevel(ParseLevel(level))
	if strings.EqualFold(format, "text") {
		l.SetHeader(textHeader)
		l.DisableColor()
	} else {
		l.SetHeader(jsonHeader)
	}
	return l
}

// ParseLevel maps a config level name to a gommon level. Unknown names
// fall back to INFO.
func ParseLevel(level string) log.Lvl {
	switch strings.ToLower(level) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	default:
		return log.INFO
	}
}

// Discard returns a logger that drops everything, for tests.
func Discard() *log.Logger {
	l := log.New("-")
	l.SetOutput(io.Discard)
	l.SetLevel(log.OFF)
	return l
}

package logging

import (
	"strings"

	"github.com/charmbracelet/log"
)

// Default is the process-wide logger. Components derive prefixed children from it.
var Default = log.Default()

// Init applies the time format and level taken from the config file.
// Unknown levels fall back to info.
func Init(level string) {
	Default.SetTimeFormat("2006-01-02 15:04:05")
	Default.SetReportTimestamp(true)

	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		Default.Warnf("unknown log level %q, using info", level)
		lvl = log.InfoLevel
	}
	Default.SetLevel(lvl)
}

// For returns a child logger tagged with the component name.
func For(component string) *log.Logger {
	return Default.WithPrefix(component)
}

package config

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// ConfigureLogging sets the global logger level. Unknown levels fall back to info.
func ConfigureLogging(level string) {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("Unknown log level %q, using info", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

package observability

import (
	"github.com/sirupsen/logrus"
)

// ConfigureLogging sets the global logrus level and formatter. format is
// "json" or anything else for text; an unknown level falls back to info.
func ConfigureLogging(level, format string) {
	if format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.WithField("level", level).Warn("Unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}

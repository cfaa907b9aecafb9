package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the service logger. JSON output is the production
// default; text is friendlier for the one-shot CLI.
func NewLogger(level string, jsonFormat bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if jsonFormat {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

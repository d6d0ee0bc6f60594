package app

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// LoggerConfig configures the logger.
type LoggerConfig struct {
	// Output is where logs are written. Defaults to os.Stderr.
	Output io.Writer
	// JSON selects the JSON formatter instead of text.
	JSON bool
}

// NewLogger creates the application logger.
func NewLogger(cfg LoggerConfig) *logrus.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	log := logrus.New()
	log.SetOutput(cfg.Output)
	if cfg.JSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

package logger

import (
	"github.com/sirupsen/logrus"
)

var Log *logrus.Logger

// Init инициализирует структурированный логгер. В development пишет текстом с уровнем debug.
func Init(env string) {
	Log = logrus.New()

	if env == "development" {
		Log.SetLevel(logrus.DebugLevel)
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return
	}

	Log.SetLevel(logrus.InfoLevel)
	Log.SetFormatter(&logrus.JSONFormatter{})
}

// WithComponent логгер с полем component для фоновых подсистем.
func WithComponent(name string) *logrus.Entry {
	if Log == nil {
		Init("production")
	}
	return Log.WithField("component", name)
}

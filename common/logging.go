package common

import (
	"log"

	"github.com/sirupsen/logrus"
)

// GetPluginLogger returns a logger scoped to the given plugin.
func GetPluginLogger(plugin Plugin) *logrus.Entry {
	info := plugin.PluginInfo()
	return GetFixedPrefixLogger(info.SysName)
}

// GetFixedPrefixLogger returns a logger with the fixed prefix field p set.
func GetFixedPrefixLogger(prefix string) *logrus.Entry {
	return logrus.WithField("p", prefix)
}

// SetLogFormatter sets the formatter on the standard logger, for use before
// anything is logged at startup.
func SetLogFormatter(formatter logrus.Formatter) {
	logrus.SetFormatter(formatter)
}

func AddLogHook(hook logrus.Hook) {
	logrus.AddHook(hook)
}

func SetLoggingLevel(level logrus.Level) {
	logrus.SetLevel(level)
}

// RedirectStdLog routes the standard library log output through logrus so
// third party packages using it end up in the same stream.
func RedirectStdLog() {
	log.SetOutput(&STDLogProxy{})
	log.SetFlags(0)
}

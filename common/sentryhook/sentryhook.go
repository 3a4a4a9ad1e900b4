package sentryhook

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// Setup initializes sentry delivery of error level log entries, no-op when
// the dsn is empty.
func Setup(dsn string) error {
	if dsn == "" {
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn: dsn,
	})
	if err != nil {
		return err
	}

	logrus.AddHook(Hook{})
	return nil
}

// Flush waits for buffered events to be delivered, called on shutdown.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}

type Hook struct{}

func (hook Hook) Levels() []logrus.Level {
	return []logrus.Level{
		logrus.ErrorLevel,
		logrus.FatalLevel,
		logrus.PanicLevel,
	}
}

func (hook Hook) Fire(entry *logrus.Entry) error {
	hub := sentry.CurrentHub().Clone()
	if hub == nil {
		return nil
	}

	hub.WithScope(func(s *sentry.Scope) {
		for k, v := range entry.Data {
			strV := fmt.Sprint(v)
			switch k {
			case "p":
				s.SetTag("plugin", strV)
			case "guild", "g", "guild_id":
				s.SetExtra("guild_id", strV)
			case "stck":
			default:
				s.SetExtra(k, strV)
			}
		}

		if err, ok := entry.Data["error"]; ok {
			s.SetExtra("message", entry.Message)
			hub.CaptureException(err.(error))
		} else {
			hub.CaptureMessage(entry.Message)
		}
	})

	return nil
}

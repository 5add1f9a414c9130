// Package logrusadapter bridges a logrus logger into the observability
// contract for applications that already run logrus.
package logrusadapter

import (
	"github.com/sirupsen/logrus"

	"github.com/sudachi-dev/cardscan/observability"
)

type adapter struct {
	entry *logrus.Entry
}

// New wraps a logrus logger. A nil logger uses the logrus standard logger.
func New(l *logrus.Logger) observability.Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return adapter{entry: logrus.NewEntry(l)}
}

func (a adapter) withFields(fields []observability.Field) *logrus.Entry {
	if len(fields) == 0 {
		return a.entry
	}
	data := make(logrus.Fields, len(fields))
	for _, f := range fields {
		data[f.Key()] = f.Value()
	}
	return a.entry.WithFields(data)
}

func (a adapter) Debug(msg string, fields ...observability.Field) {
	a.withFields(fields).Debug(msg)
}

func (a adapter) Info(msg string, fields ...observability.Field) {
	a.withFields(fields).Info(msg)
}

func (a adapter) Warn(msg string, fields ...observability.Field) {
	a.withFields(fields).Warn(msg)
}

func (a adapter) Error(msg string, fields ...observability.Field) {
	a.withFields(fields).Error(msg)
}

func (a adapter) With(fields ...observability.Field) observability.Logger {
	return adapter{entry: a.withFields(fields)}
}

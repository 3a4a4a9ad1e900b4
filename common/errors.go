package common

import (
	"path/filepath"
	"runtime"

	"emperror.dev/errors"
	"github.com/sirupsen/logrus"
)

// ErrWithCaller annotates the error message with the name of the calling
// function, use at store and service boundaries where the plain message
// would be ambiguous.
func ErrWithCaller(err error) error {
	if err == nil {
		return nil
	}

	pc := make([]uintptr, 1)
	runtime.Callers(2, pc)
	f := runtime.FuncForPC(pc[0])
	return errors.WithMessage(err, filepath.Base(f.Name()))
}

// LogIgnoreError logs the error with the provided message and fields if there
// was one, for fire and forget paths where the error does not change the
// outcome.
func LogIgnoreError(err error, msg string, data logrus.Fields) {
	if err == nil {
		return
	}

	l := logger.WithError(err)
	if data != nil {
		l = l.WithFields(data)
	}

	l.Error(msg)
}

package log

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var l *logrus.Logger

func init() {
	l = logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	l.SetLevel(logrus.InfoLevel)
}

// SetLevel accepts trace, debug, info, warn or error. Anything else means info.
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if nil != err {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
}

func SetOutput(w io.Writer) {
	l.SetOutput(w)
}

// Logger exposes the underlying logger, e.g. to hand it to libraries.
func Logger() *logrus.Logger {
	return l
}

func Trace(msg any) {
	l.Trace(fmt.Sprintf("%s", msg))
}

func TraceF(format string, a ...any) {
	l.Tracef(format, a...)
}

func Debug(msg any) {
	l.Debug(fmt.Sprintf("%s", msg))
}

func DebugF(format string, a ...any) {
	l.Debugf(format, a...)
}

func Info(msg any) {
	l.Info(fmt.Sprintf("%s", msg))
}

func InfoF(format string, a ...any) {
	l.Infof(format, a...)
}

func Warn(msg any) {
	l.Warn(fmt.Sprintf("%s", msg))
}

func WarnF(format string, a ...any) {
	l.Warnf(format, a...)
}

func Error(msg any) {
	l.Error(fmt.Sprintf("%s", msg))
}

func ErrorF(format string, a ...any) {
	l.Errorf(format, a...)
}

func Fatal(msg any) {
	l.Error(fmt.Sprintf("%s", msg))
	os.Exit(1)
}

func FatalF(format string, a ...any) {
	l.Errorf(format, a...)
	os.Exit(1)
}

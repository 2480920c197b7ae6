package logger

import (
	"path/filepath"
	"reflect"
	"runtime"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

const maxCallerDepth = 25

var (
	loggerPackage = reflect.TypeOf(Logger{}).PkgPath()
	logrusPackage = reflect.TypeOf(logrus.Entry{}).PkgPath()
)

// callerHook tags each line with the first frame outside logrus and this
// package. logrus' own caller reporting would stop at the wrappers here.
type callerHook struct{}

func (callerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (callerHook) Fire(entry *logrus.Entry) error {
	pcs := make([]uintptr, maxCallerDepth)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		pkg := packageOf(frame.Function)
		if pkg != loggerPackage && pkg != logrusPackage {
			entry.Data[logrus.FieldKeyFunc] = shortFunction(frame.Function)
			entry.Data[logrus.FieldKeyFile] = filepath.Base(frame.File) + ":" + strconv.Itoa(frame.Line)
			return nil
		}
		if !more {
			return nil
		}
	}
}

// packageOf returns the import path of a fully qualified function name,
// e.g. "a/b/pkg.(*T).M" -> "a/b/pkg".
func packageOf(function string) string {
	slash := strings.LastIndex(function, "/")
	if dot := strings.Index(function[slash+1:], "."); dot >= 0 {
		return function[:slash+1+dot]
	}
	return function
}

func shortFunction(function string) string {
	if idx := strings.LastIndex(function, "/"); idx != -1 {
		return function[idx+1:]
	}
	return function
}

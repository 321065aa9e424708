package logger

import (
	"io"
	"log"
)

// Debug is the trace logger. It discards output until EnableDebug is called.
var Debug = log.New(io.Discard, "gosh: ", 0)

// EnableDebug routes traces to w.
func EnableDebug(w io.Writer) {
	Debug.SetOutput(w)
}

// Debugf writes a trace line.
func Debugf(format string, a ...interface{}) {
	Debug.Printf(format, a...)
}

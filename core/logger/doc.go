// Package logger holds the shell's debug trace logger and its job event log.
//
// Traces are off by default. The CLI turns them on with --debug, after which
// every spawn, redirection, group change, and wait event is written to
// stderr with a "gosh: " prefix.
//
// The event log records each job's start, stop and finish as a protobuf
// Struct, one JSON object per line, when the configuration names a file
// for it.
package logger

package logger

import (
	"io"
	"os"
)

func ExampleDebugf() {
	EnableDebug(os.Stdout)
	defer EnableDebug(io.Discard)

	Debugf("pid %d joined group %d", 101, 100)
	// Output: gosh: pid 101 joined group 100
}

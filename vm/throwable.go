package vm

import (
	"fmt"
	"runtime/debug"
)

// Throwable is an exception raised inside the managed runtime. Method bodies
// return it (or panic) to signal failure; the runtime captures the stack at
// construction so the bridge can report it to the host.
type Throwable struct {
	Message string
	Stack   string
}

func (t *Throwable) Error() string { return t.Message }

// Throwf raises a new exception with a formatted message and a stack
// snapshot of the raising thread.
func Throwf(format string, args ...any) *Throwable {
	return &Throwable{
		Message: fmt.Sprintf(format, args...),
		Stack:   string(debug.Stack()),
	}
}

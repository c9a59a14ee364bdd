package util

import (
	"runtime"

	"github.com/pkg/errors"
)

const maxStacksize = 8 * 1024

// ErrPanic is wrapped by errors returned from recovered panics.
var ErrPanic = errors.New("panic")

// RecoverPanic wraps f so that a panic is returned as an error carrying
// the goroutine stack.
func RecoverPanic(f func() error) func() error {
	return func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				stack := make([]byte, maxStacksize)
				stack = stack[:runtime.Stack(stack, false)]
				err = errors.Wrapf(ErrPanic, "%v\n%s", p, stack)
			}
		}()
		return f()
	}
}

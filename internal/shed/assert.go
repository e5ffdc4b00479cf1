package shed

import (
	"path/filepath"
	"runtime"
	"sync/atomic"
)

// AssertFunc receives every invariant violation the scheduler detects.
type AssertFunc func(expression, file string, line int)

var assertHook atomic.Pointer[AssertFunc]

// SetAssert installs fn as the process-wide invariant hook. A nil fn removes
// the hook; violations are then only reported through returned errors.
func SetAssert(fn AssertFunc) {
	if fn == nil {
		assertHook.Store(nil)
		return
	}
	assertHook.Store(&fn)
}

// check returns nil when ok holds. Otherwise it reports expression together
// with the caller's position to the installed hook and returns it as an
// *InvariantError.
func check(ok bool, expression string) error {
	if ok {
		return nil
	}
	err := &InvariantError{Expression: expression}
	if _, file, line, found := runtime.Caller(1); found {
		err.File = filepath.Base(file)
		err.Line = line
	}
	if hook := assertHook.Load(); hook != nil {
		(*hook)(err.Expression, err.File, err.Line)
	}
	return err
}

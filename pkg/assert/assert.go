package assert

import (
	"fmt"
	"reflect"
	"runtime"
)

// NotNil panics when v is nil (including typed nil pointers).
func NotNil(v interface{}) {
	if v == nil {
		panic("assert: unexpected nil value")
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			panic(fmt.Sprintf("assert: unexpected nil %T", v))
		}
	}
}

// NotCircular panics when the calling Default* constructor is re-entered while
// still initialising, which would otherwise deadlock inside sync.Once.
func NotCircular() {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	first, more := frames.Next()
	if !more {
		return
	}
	for {
		f, more := frames.Next()
		if f.Function == first.Function {
			panic("assert: circular initialisation of " + first.Function)
		}
		if !more {
			return
		}
	}
}

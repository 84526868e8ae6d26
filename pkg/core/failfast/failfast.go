// Package failfast panics on programmer errors: misuse that no caller could
// recover from at runtime, such as passing a nil dependency to a constructor.
package failfast

import (
	"fmt"
	"reflect"
)

// If panics unless condition holds
func If(condition bool, message string, args ...interface{}) {
	if !condition {
		panic(fmt.Errorf("fail-fast: "+message, args...))
	}
}

// NotNil panics if v is nil, including typed nils hidden in an interface
// (pointers, funcs, maps, chans, slices and interfaces).
func NotNil(v interface{}, name string) {
	if isNil(v) {
		panic(fmt.Errorf("fail-fast: %s is nil", name))
	}
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Map, reflect.Chan, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

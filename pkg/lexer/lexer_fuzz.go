//go:build gofuzz
// +build gofuzz

package lexer

import (
	"fmt"
	"reflect"
)

func Fuzz(data []byte) int {
	m, err := ParseBytes(data)
	if err != nil {
		if m != nil {
			panic(fmt.Errorf("measurement %+v returned with error %v", m, err))
		}
		return 0
	}
	// Canonical form must decode back to the same measurement.
	again, err := Parse(m.String())
	if err != nil {
		panic(fmt.Errorf("canonical form %q of %q failed: %v", m.String(), data, err))
	}
	if !reflect.DeepEqual(m, again) {
		panic(fmt.Errorf("round trip of %q: %+v != %+v", data, m, again))
	}
	return 1
}

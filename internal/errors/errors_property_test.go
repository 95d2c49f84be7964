//go:build property

package errors

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var errorTypes = []ErrorType{
	ErrorTypeResolution, ErrorTypeTransform, ErrorTypeChannel, ErrorTypeEncoding,
	ErrorTypeAnalysis, ErrorTypeConfig, ErrorTypeIO, ErrorTypeInternal,
}

func TestIsleErrorProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	genType := gen.IntRange(0, len(errorTypes)-1).Map(func(i int) ErrorType { return errorTypes[i] })

	// Property: wrapping with %w never hides the type or the file
	properties.Property("type and file survive wrapping", prop.ForAll(
		func(et ErrorType, code, file string, depth int) bool {
			var err error = (&IsleError{Type: et, Code: code}).WithFile(file)
			for i := 0; i < depth; i++ {
				err = fmt.Errorf("layer %d: %w", i, err)
			}
			return IsType(err, et) && TypeOf(err) == et && FilePathOf(err) == file
		},
		genType,
		gen.AlphaString(),
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
		gen.IntRange(0, 5),
	))

	// Property: a code-less sentinel matches every code of its type
	properties.Property("sentinels match by type", prop.ForAll(
		func(et ErrorType, code string) bool {
			err := &IsleError{Type: et, Code: code}
			return err.Is(&IsleError{Type: et}) &&
				err.Is(&IsleError{Type: et, Code: code}) &&
				!err.Is(&IsleError{Type: et, Code: code + "_OTHER"})
		},
		genType,
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

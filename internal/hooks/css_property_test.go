//go:build property
// +build property

package hooks

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestCSSScopingProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	classGen := gen.RegexMatch(`^[a-z][a-z0-9-]{0,12}$`)

	// Property: scoping the same file twice yields the same names
	properties.Property("deterministic rewrite", prop.ForAll(
		func(rel string, classes []string) bool {
			src := stylesheet(classes)
			out1, map1 := ScopeCSS(Prefix(rel), src)
			out2, map2 := ScopeCSS(Prefix(rel), src)
			if out1 != out2 || map1.Len() != map2.Len() {
				return false
			}
			for pair := map1.Oldest(); pair != nil; pair = pair.Next() {
				v, ok := map2.Get(pair.Key)
				if !ok || v != pair.Value {
					return false
				}
			}
			return true
		},
		gen.RegexMatch(`^[a-z]{1,8}/[a-z]{1,8}\.module\.css$`),
		gen.SliceOf(classGen),
	))

	// Property: two different files never share a rewritten name
	properties.Property("distinct files never overlap", prop.ForAll(
		func(relA, relB, class string) bool {
			if relA == relB {
				return true
			}
			_, a := ScopeCSS(Prefix(relA), "."+class+"{}")
			_, b := ScopeCSS(Prefix(relB), "."+class+"{}")
			va, _ := a.Get(class)
			vb, _ := b.Get(class)
			return va != vb
		},
		gen.RegexMatch(`^[a-z]{1,8}\.module\.css$`),
		gen.RegexMatch(`^[a-z]{1,8}\.module\.css$`),
		classGen,
	))

	// Property: every rewritten name keeps the original as its suffix
	properties.Property("rewritten names end with the original", prop.ForAll(
		func(classes []string) bool {
			_, m := ScopeCSS(Prefix("x.module.css"), stylesheet(classes))
			for pair := m.Oldest(); pair != nil; pair = pair.Next() {
				if !strings.HasSuffix(pair.Value, "_"+pair.Key) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(classGen),
	))

	properties.TestingRun(t)
}

func stylesheet(classes []string) string {
	var b strings.Builder
	for _, c := range classes {
		b.WriteString("." + c + " { margin: 0; }\n")
	}
	return b.String()
}

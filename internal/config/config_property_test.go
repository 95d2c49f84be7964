//go:build property
// +build property

package config

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestConventionProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	genSuffix := gen.Identifier().Map(func(s string) string { return "." + s })

	// Property: a suffix claimed by two kinds is always rejected
	properties.Property("overlapping suffixes rejected", prop.ForAll(
		func(shared string) bool {
			c := ConventionsConfig{
				ClientSuffixes:    []string{shared},
				UniversalSuffixes: []string{shared},
				CSSModuleSuffix:   ".module.css",
			}
			return validateConventions(&c) != nil
		},
		genSuffix,
	))

	// Property: disjoint dotted suffixes always validate
	properties.Property("disjoint suffixes accepted", prop.ForAll(
		func(base string) bool {
			c := ConventionsConfig{
				ClientSuffixes:    []string{".client" + base},
				UniversalSuffixes: []string{".universal" + base},
				CSSModuleSuffix:   ".module" + base + ".css",
			}
			return validateConventions(&c) == nil
		},
		genSuffix,
	))

	// Property: paths that climb out of the project are rejected
	properties.Property("escaping paths rejected", prop.ForAll(
		func(name string) bool {
			return validatePath("../"+name) != nil && validatePath("/"+name) != nil
		},
		gen.Identifier(),
	))

	properties.TestingRun(t)
}

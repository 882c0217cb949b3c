//go:build property

package pkgver

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestVersionProperties validates the version numbering invariants over
// generated package names and versions.
func TestVersionProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1357)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	identGen := gen.RegexMatch(`[A-Za-z][A-Za-z0-9_]{0,15}`)

	properties.Property("Of(NextPackage(x)) == Of(x)+1", prop.ForAll(
		func(base string, version int) bool {
			name := base
			if version > 0 {
				name = fmt.Sprintf("%s.%d", base, version)
			}

			next, err := NextPackage(name)
			if err != nil {
				return false
			}

			before, err := Of(name)
			if err != nil {
				return false
			}
			after, err := Of(next)
			if err != nil {
				return false
			}

			return after == before+1
		},
		identGen,
		gen.IntRange(0, 100000),
	))

	properties.Property("NextPackage preserves the base name", prop.ForAll(
		func(base string, version int) bool {
			name := fmt.Sprintf("%s.%d", base, version)
			next, err := NextPackage(name)
			if err != nil {
				return false
			}
			return Base(next) == base
		},
		identGen,
		gen.IntRange(0, 100000),
	))

	properties.Property("NextFile preserves base and extension", prop.ForAll(
		func(base string, ext string, version int) bool {
			name := fmt.Sprintf("%s.%d.%s", base, version, ext)
			next, err := NextFile(name)
			if err != nil {
				return false
			}
			return Base(next) == base && StripFile(next) == base+"."+ext
		},
		identGen,
		gen.RegexMatch(`[a-z]{1,4}`),
		gen.IntRange(0, 100000),
	))

	properties.Property("VersionedFile round-trips through Of and StripFile", prop.ForAll(
		func(base string, ext string, version int) bool {
			plain := base + "." + ext
			versioned := VersionedFile(plain, version)

			got, err := Of(versioned)
			if err != nil {
				return false
			}
			return got == version && StripFile(versioned) == plain
		},
		identGen,
		gen.RegexMatch(`[a-z]{1,4}`),
		gen.IntRange(1, 100000),
	))

	properties.TestingRun(t)
}

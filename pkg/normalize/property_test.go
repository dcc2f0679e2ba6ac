package normalize_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/agentstation/keysync/pkg/normalize"
)

// rawKeys generates key-like strings mixing case, digits, delimiters,
// punctuation and a few non-ASCII letters.
func rawKeys() gopter.Gen {
	return gen.RegexMatch(`[a-zA-Z0-9 _#@.\-éÄß]{0,24}`)
}

func rulesFrom(upper, strip, collapse, pad bool) normalize.Rules {
	rules := normalize.Rules{
		Uppercase:            upper,
		StripNonAlphanumeric: strip,
		LeftPadNumeric:       pad,
		PadLength:            6,
	}
	if collapse {
		rules.CollapseDelimiters = "-"
	}
	return rules
}

func TestNormalizeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("normalize is idempotent", prop.ForAll(
		func(raw string, upper, strip, collapse, pad bool) bool {
			rules := rulesFrom(upper, strip, collapse, pad)
			once, err := normalize.Normalize(raw, rules)
			if err != nil {
				return true
			}
			twice, err := normalize.Normalize(once, rules)
			return err == nil && twice == once
		},
		rawKeys(), gen.Bool(), gen.Bool(), gen.Bool(), gen.Bool(),
	))

	properties.Property("normalize is deterministic", prop.ForAll(
		func(raw string, upper, strip, collapse, pad bool) bool {
			rules := rulesFrom(upper, strip, collapse, pad)
			a, errA := normalize.Normalize(raw, rules)
			b, errB := normalize.Normalize(raw, rules)
			return a == b && (errA == nil) == (errB == nil)
		},
		rawKeys(), gen.Bool(), gen.Bool(), gen.Bool(), gen.Bool(),
	))

	properties.Property("default output only holds A-Z, 0-9 and the delimiter", prop.ForAll(
		func(raw string) bool {
			out, err := normalize.Normalize(raw, normalize.DefaultRules())
			if err != nil {
				return true
			}
			for _, r := range out {
				if !(('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') || r == '-') {
					return false
				}
			}
			return true
		},
		rawKeys(),
	))

	properties.TestingRun(t)
}

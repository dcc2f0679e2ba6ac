// Package normalize canonicalizes raw keys so that keys from different
// systems can be compared by value.
//
// Normalize is pure and idempotent: Normalize(Normalize(x)) == Normalize(x)
// for every input and every valid rule set.
package normalize

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/agentstation/keysync/pkg/errors"
	"github.com/agentstation/keysync/pkg/sources"
)

// Key is a normalized key together with where it came from.
type Key struct {
	Value  string     `json:"value"`
	RawKey string     `json:"raw_key"`
	System sources.ID `json:"source_system"`
	SeenAt time.Time  `json:"seen_at"`
}

// Normalize applies rules to raw. An empty raw key is rejected, as is a key
// that has nothing left after normalization.
func Normalize(raw string, rules Rules) (string, error) {
	if raw == "" {
		return "", errors.NewInvalidKeyError("", errors.KeyEmpty)
	}

	s := strings.TrimSpace(norm.NFC.String(raw))
	if rules.Uppercase {
		s = norm.NFC.String(strings.ToUpper(s))
	}

	collapse, collapsing := rules.collapseRune()
	if rules.StripNonAlphanumeric {
		s = strip(s, collapse, collapsing)
	}
	if collapsing {
		s = collapseRuns(s, collapse)
	}
	if rules.LeftPadNumeric {
		s = padNumbers(s, rules.PadLength)
	}

	if s == "" {
		return "", errors.NewInvalidKeyError(raw, errors.KeyBlank)
	}
	return s, nil
}

// Normalizer binds a validated rule set.
type Normalizer struct {
	rules Rules
}

// New returns a Normalizer for rules.
func New(rules Rules) (*Normalizer, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &Normalizer{rules: rules}, nil
}

// Rules returns the rule set in use.
func (n *Normalizer) Rules() Rules {
	return n.rules
}

// Normalize normalizes a single raw key.
func (n *Normalizer) Normalize(raw string) (string, error) {
	return Normalize(raw, n.rules)
}

// Key normalizes a record. A record without a key fails with reason
// missing, never as an empty key.
func (n *Normalizer) Key(rec sources.Record) (Key, error) {
	if rec.Missing {
		return Key{}, errors.NewInvalidKeyError("", errors.KeyMissing)
	}
	value, err := Normalize(rec.RawKey, n.rules)
	if err != nil {
		return Key{}, err
	}
	return Key{
		Value:  value,
		RawKey: rec.RawKey,
		System: rec.System,
		SeenAt: rec.LastSeenAt,
	}, nil
}

// isDelimiter reports whether r belongs to a collapsible run.
func isDelimiter(r, collapse rune) bool {
	return unicode.IsSpace(r) || r == '_' || r == '-' || r == collapse
}

func isASCIIAlnum(r rune) bool {
	return ('A' <= r && r <= 'Z') || ('a' <= r && r <= 'z') || ('0' <= r && r <= '9')
}

// strip keeps ASCII letters and digits. Delimiters survive when they are
// about to be collapsed, otherwise only '-' does.
func strip(s string, collapse rune, collapsing bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case isASCIIAlnum(r):
			b.WriteRune(r)
		case collapsing && isDelimiter(r, collapse):
			b.WriteRune(r)
		case !collapsing && r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// collapseRuns replaces each maximal run of delimiters with collapse.
func collapseRuns(s string, collapse rune) string {
	var b strings.Builder
	b.Grow(len(s))
	inRun := false
	for _, r := range s {
		if isDelimiter(r, collapse) {
			if !inRun {
				b.WriteRune(collapse)
			}
			inRun = true
			continue
		}
		inRun = false
		b.WriteRune(r)
	}
	return b.String()
}

// padNumbers zero-pads every standalone run of ASCII digits to width.
// A run is standalone when neither neighbour is a letter or digit.
func padNumbers(s string, width int) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + width)

	for i := 0; i < len(runes); {
		if !isDigit(runes[i]) {
			b.WriteRune(runes[i])
			i++
			continue
		}
		j := i
		for j < len(runes) && isDigit(runes[j]) {
			j++
		}
		run := string(runes[i:j])
		standalone := (i == 0 || !isWordRune(runes[i-1])) && (j == len(runes) || !isWordRune(runes[j]))
		if standalone && len(run) < width {
			b.WriteString(strings.Repeat("0", width-len(run)))
		}
		b.WriteString(run)
		i = j
	}
	return b.String()
}

func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

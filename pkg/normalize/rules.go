package normalize

import (
	"unicode"
	"unicode/utf8"

	"github.com/agentstation/keysync/pkg/constants"
	"github.com/agentstation/keysync/pkg/errors"
)

// Rules selects the normalization steps. Whitespace trimming is always on.
type Rules struct {
	Uppercase            bool `json:"uppercase" yaml:"uppercase" mapstructure:"uppercase"`
	StripNonAlphanumeric bool `json:"strip_non_alphanumeric" yaml:"strip_non_alphanumeric" mapstructure:"strip_non_alphanumeric"`

	// CollapseDelimiters is a single character that replaces every run of
	// whitespace, underscores and dashes. Empty disables collapsing.
	CollapseDelimiters string `json:"collapse_delimiters" yaml:"collapse_delimiters" mapstructure:"collapse_delimiters"`

	LeftPadNumeric bool `json:"left_pad_numeric" yaml:"left_pad_numeric" mapstructure:"left_pad_numeric"`
	PadLength      int  `json:"pad_length" yaml:"pad_length" mapstructure:"pad_length"`
}

// DefaultRules returns the rule set used when nothing is configured.
func DefaultRules() Rules {
	return Rules{
		Uppercase:            true,
		StripNonAlphanumeric: true,
		CollapseDelimiters:   constants.CollapseDelimiter,
		LeftPadNumeric:       true,
		PadLength:            constants.PadLength,
	}
}

// Validate checks that the rules describe an idempotent transformation.
func (r Rules) Validate() error {
	if r.CollapseDelimiters != "" {
		c, size := utf8.DecodeRuneInString(r.CollapseDelimiters)
		if size != len(r.CollapseDelimiters) || c == utf8.RuneError {
			return &errors.ValidationError{
				Field:   "collapse_delimiters",
				Value:   r.CollapseDelimiters,
				Message: "must be a single character",
			}
		}
		if unicode.IsSpace(c) {
			return &errors.ValidationError{
				Field:   "collapse_delimiters",
				Value:   r.CollapseDelimiters,
				Message: "must not be whitespace",
			}
		}
		if isASCIIAlnum(c) {
			return &errors.ValidationError{
				Field:   "collapse_delimiters",
				Value:   r.CollapseDelimiters,
				Message: "must not be a letter or digit",
			}
		}
	}
	if r.LeftPadNumeric && r.PadLength <= 0 {
		return &errors.ValidationError{
			Field:   "pad_length",
			Value:   r.PadLength,
			Message: "must be positive when left_pad_numeric is set",
		}
	}
	return nil
}

// collapseRune returns the collapse character, or false when disabled.
func (r Rules) collapseRune() (rune, bool) {
	if r.CollapseDelimiters == "" {
		return 0, false
	}
	c, _ := utf8.DecodeRuneInString(r.CollapseDelimiters)
	return c, true
}

package provision

import (
	"strings"

	"github.com/agentstation/keysync/pkg/constants"
	"github.com/agentstation/keysync/pkg/errors"
	"github.com/agentstation/keysync/pkg/sources"
)

// Strategy selects how master keys are derived.
type Strategy string

// Master key strategies.
const (
	// StrategyMirror uses the normalized key as is. Identical keys from
	// different peers share one master key.
	StrategyMirror Strategy = "mirror"
	// StrategyNamespaced prefixes the key with its system, keeping keys from
	// different peers apart.
	StrategyNamespaced Strategy = "namespaced"
)

// String returns the string representation of a strategy.
func (s Strategy) String() string {
	return string(s)
}

// ParseStrategy parses a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyMirror:
		return StrategyMirror, nil
	case StrategyNamespaced:
		return StrategyNamespaced, nil
	default:
		return "", &errors.ValidationError{
			Field:   "strategy",
			Value:   s,
			Message: "must be mirror or namespaced",
		}
	}
}

// Generator derives master keys. MasterKey is a pure function of the
// generator settings, the system and the key.
type Generator struct {
	Strategy  Strategy `json:"strategy" yaml:"strategy"`
	Separator string   `json:"separator" yaml:"separator"`
	Prefix    string   `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// NewGenerator returns a generator using the default separator.
func NewGenerator(strategy Strategy) Generator {
	return Generator{Strategy: strategy, Separator: constants.NamespaceSeparator}
}

// Validate checks the generator settings.
func (g Generator) Validate() error {
	if _, err := ParseStrategy(string(g.Strategy)); err != nil {
		return err
	}
	if g.Strategy == StrategyNamespaced && g.Separator == "" {
		return &errors.ValidationError{
			Field:   "separator",
			Message: "required for the namespaced strategy",
		}
	}
	return nil
}

// MasterKey returns the master key for key observed in system.
//
//	mirror:     KEY
//	namespaced: [PREFIX<sep>]SYSTEM<sep>KEY
func (g Generator) MasterKey(system sources.ID, key string) string {
	if g.Strategy != StrategyNamespaced {
		return key
	}
	var b strings.Builder
	if g.Prefix != "" {
		b.WriteString(g.Prefix)
		b.WriteString(g.Separator)
	}
	b.WriteString(system.String())
	b.WriteString(g.Separator)
	b.WriteString(key)
	return b.String()
}

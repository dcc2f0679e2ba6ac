package normalize_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/keysync/pkg/errors"
	"github.com/agentstation/keysync/pkg/normalize"
	"github.com/agentstation/keysync/pkg/sources"
)

func TestNormalizeDefaultRules(t *testing.T) {
	rules := normalize.DefaultRules()

	tests := []struct {
		raw  string
		want string
	}{
		{raw: "PROD__ABC__789", want: "PROD-ABC-000789"},
		{raw: "txn 2024 001", want: "TXN-002024-000001"},
		{raw: "ORD#999999", want: "ORD999999"},
		{raw: "CUST-1234567", want: "CUST-1234567"},
		{raw: "  abc-123  ", want: "ABC-000123"},
		{raw: "test@#$123", want: "TEST123"},
		{raw: "K1", want: "K1"},
		{raw: "a - _ b", want: "A-B"},
		{raw: "42", want: "000042"},
		{raw: "inv.7", want: "INV7"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := normalize.Normalize(tt.raw, rules)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeRuleToggles(t *testing.T) {
	tests := []struct {
		name  string
		rules normalize.Rules
		raw   string
		want  string
	}{
		{
			name:  "trim only",
			rules: normalize.Rules{},
			raw:   "  ab_c 1  ",
			want:  "ab_c 1",
		},
		{
			name:  "uppercase only",
			rules: normalize.Rules{Uppercase: true},
			raw:   "ab_c",
			want:  "AB_C",
		},
		{
			name:  "strip without collapse keeps dashes",
			rules: normalize.Rules{StripNonAlphanumeric: true},
			raw:   "a b-c_d",
			want:  "ab-cd",
		},
		{
			name:  "collapse with custom delimiter",
			rules: normalize.Rules{CollapseDelimiters: "."},
			raw:   "a__b  c.-d",
			want:  "a.b.c.d",
		},
		{
			name:  "pad without collapse",
			rules: normalize.Rules{LeftPadNumeric: true, PadLength: 4},
			raw:   "x-7 y12",
			want:  "x-0007 y12",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalize.Normalize(tt.raw, tt.rules)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeRejectsEmptyAndBlank(t *testing.T) {
	_, err := normalize.Normalize("", normalize.DefaultRules())
	require.Error(t, err)
	assert.True(t, errors.IsInvalidKey(err))

	var keyErr *errors.InvalidKeyError
	require.ErrorAs(t, err, &keyErr)
	assert.Equal(t, errors.KeyEmpty, keyErr.Reason)

	_, err = normalize.Normalize("  @#  ", normalize.DefaultRules())
	require.ErrorAs(t, err, &keyErr)
	assert.Equal(t, errors.KeyBlank, keyErr.Reason)
}

func TestNormalizerKeyMissingIsDistinctFromEmpty(t *testing.T) {
	n, err := normalize.New(normalize.DefaultRules())
	require.NoError(t, err)

	var missingErr, emptyErr *errors.InvalidKeyError
	_, err = n.Key(sources.Record{System: sources.B, Missing: true})
	require.ErrorAs(t, err, &missingErr)
	_, err = n.Key(sources.Record{System: sources.B, RawKey: ""})
	require.ErrorAs(t, err, &emptyErr)

	assert.Equal(t, errors.KeyMissing, missingErr.Reason)
	assert.Equal(t, errors.KeyEmpty, emptyErr.Reason)
}

func TestNormalizerKey(t *testing.T) {
	n, err := normalize.New(normalize.DefaultRules())
	require.NoError(t, err)

	seen := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	key, err := n.Key(sources.Record{System: sources.C, RawKey: "ord 12", LastSeenAt: seen})
	require.NoError(t, err)

	assert.Equal(t, normalize.Key{
		Value:  "ORD-000012",
		RawKey: "ord 12",
		System: sources.C,
		SeenAt: seen,
	}, key)
}

func TestRulesValidate(t *testing.T) {
	tests := []struct {
		name    string
		rules   normalize.Rules
		wantErr bool
	}{
		{name: "defaults", rules: normalize.DefaultRules()},
		{name: "no collapse", rules: normalize.Rules{Uppercase: true}},
		{name: "two characters", rules: normalize.Rules{CollapseDelimiters: "--"}, wantErr: true},
		{name: "whitespace", rules: normalize.Rules{CollapseDelimiters: " "}, wantErr: true},
		{name: "letter", rules: normalize.Rules{CollapseDelimiters: "x"}, wantErr: true},
		{name: "zero pad length", rules: normalize.Rules{LeftPadNumeric: true}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rules.Validate()
			if tt.wantErr {
				assert.True(t, errors.IsValidationError(err))
				return
			}
			assert.NoError(t, err)
		})
	}

	_, err := normalize.New(normalize.Rules{CollapseDelimiters: "ab"})
	assert.Error(t, err)
}

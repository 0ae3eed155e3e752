package validator

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func TestValidate_BadgeWithAllowedSet(t *testing.T) {
	res := Validate("Compliant — meets setback rules", KindBadge, Constraints{
		AllowedValues: []string{"Compliant", "Non-Compliant"},
	})

	require.True(t, res.OK, res.Error)
	assert.Equal(t, "Compliant", res.DisplayValue)
	assert.Equal(t, "meets setback rules", res.Reasoning)
	assert.Equal(t, "Compliant", res.Normalized)
}

func TestValidate_CurrencyWithPeriod(t *testing.T) {
	res := Validate("€150/year — average pruning cost", KindCurrency, Constraints{})

	require.True(t, res.OK, res.Error)
	assert.Equal(t, Money{Amount: 150, Currency: "EUR", Period: strptr("year")}, res.Normalized)
	assert.Equal(t, "€150/year", res.DisplayValue)
	assert.Equal(t, "average pruning cost", res.Reasoning)
}

func TestValidate_ReversedRangeFails(t *testing.T) {
	res := Validate("15-10 — inverted", KindRange, Constraints{})

	assert.False(t, res.OK)
	assert.True(t, errors.Is(res.Err, ErrOutOfRange))
	assert.NotEmpty(t, res.Error)
}

func TestValidate_ScoreAcceptsWholeRange(t *testing.T) {
	for n := 0; n <= 100; n++ {
		raw := fmt.Sprintf("%d/100 — reason %d", n, n)
		res := Validate(raw, KindScore, Constraints{})
		require.True(t, res.OK, "input %q: %s", raw, res.Error)
		assert.Equal(t, n, res.Normalized)
		assert.Equal(t, fmt.Sprintf("%d/100", n), res.DisplayValue)
	}
}

func TestValidate_ScoreRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{name: "above range", raw: "101/100 — too much", want: ErrOutOfRange},
		{name: "far above range", raw: "250/100 — way too much", want: ErrOutOfRange},
		{name: "negative", raw: "-1/100 — negative", want: ErrOutOfRange},
		{name: "non integer", raw: "55.5/100 — fractional", want: ErrFormat},
		{name: "wrong denominator", raw: "8/10 — out of ten", want: ErrFormat},
		{name: "words", raw: "high — sounds good", want: ErrFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.raw, KindScore, Constraints{})
			assert.False(t, res.OK)
			assert.ErrorIs(t, res.Err, tt.want)
		})
	}
}

func TestValidate_MissingSeparatorForEveryKind(t *testing.T) {
	inputs := []string{
		"Compliant",
		"80/100",
		"€150/year",
		"Compliant-meets rules",
		"12 m —no space after dash",
		"",
	}
	constraints := Constraints{AllowedEnums: []string{"Slow", "Fast"}}

	for _, kind := range Kinds {
		for _, raw := range inputs {
			res := Validate(raw, kind, constraints)
			assert.False(t, res.OK, "kind %s input %q", kind, raw)
			assert.ErrorIs(t, res.Err, ErrMissingSeparator, "kind %s input %q", kind, raw)
			assert.Contains(t, res.Error, "missing separator")
		}
	}
}

func TestValidate_SplitsAtFirstSeparator(t *testing.T) {
	res := Validate("Fast – grows quickly - up to a metre — per year", KindText, Constraints{})

	require.True(t, res.OK)
	assert.Equal(t, "Fast", res.DisplayValue)
	assert.Equal(t, "grows quickly - up to a metre — per year", res.Reasoning)
}

func TestValidate_Badge(t *testing.T) {
	allowed := Constraints{AllowedValues: []string{"Native", "Non-native", "Invasive"}}

	res := Validate("  **invasive**  —  listed regionally ", KindBadge, allowed)
	require.True(t, res.OK, res.Error)
	assert.Equal(t, "Invasive", res.Normalized)
	assert.Equal(t, "listed regionally", res.Reasoning)

	res = Validate("Endemic — only here", KindBadge, allowed)
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, ErrNotAllowed)

	res = Validate("Anything goes — free badge", KindBadge, Constraints{})
	require.True(t, res.OK)
	assert.Equal(t, "Anything goes", res.Normalized)
}

func TestValidate_Currency(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		constraints Constraints
		ok          bool
		want        any
		display     string
		errClass    error
	}{
		{
			name:    "thousands and decimals",
			raw:     "$1,234.50/month — contract rate",
			ok:      true,
			want:    Money{Amount: 1234.5, Currency: "USD", Period: strptr("month")},
			display: "$1,234.50/month",
		},
		{
			name:    "no period",
			raw:     "£80 — one-off",
			ok:      true,
			want:    Money{Amount: 80, Currency: "GBP"},
			display: "£80",
		},
		{
			name:        "default period applied",
			raw:         "€2500 — yearly budget",
			constraints: Constraints{DefaultPeriod: "year"},
			ok:          true,
			want:        Money{Amount: 2500, Currency: "EUR", Period: strptr("year")},
			display:     "€2,500/year",
		},
		{
			name:        "currency outside allowed set by code",
			raw:         "$100 — dollars",
			constraints: Constraints{AllowedCurrencies: []string{"EUR", "GBP"}},
			errClass:    ErrNotAllowed,
		},
		{
			name:        "currency allowed by symbol",
			raw:         "€100 — euros",
			constraints: Constraints{AllowedCurrencies: []string{"€"}},
			ok:          true,
			want:        Money{Amount: 100, Currency: "EUR"},
			display:     "€100",
		},
		{
			name:        "period outside allowed set",
			raw:         "€10/day — daily",
			constraints: Constraints{AllowedPeriods: []string{"year"}},
			errClass:    ErrNotAllowed,
		},
		{
			name:     "unknown period",
			raw:      "€10/fortnight — odd",
			errClass: ErrFormat,
		},
		{
			name:     "unsupported symbol",
			raw:      "¥500 — yen",
			errClass: ErrFormat,
		},
		{
			name:     "bad grouping",
			raw:      "€1,50 — broken",
			errClass: ErrFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.raw, KindCurrency, tt.constraints)
			if !tt.ok {
				assert.False(t, res.OK)
				assert.ErrorIs(t, res.Err, tt.errClass)
				return
			}
			require.True(t, res.OK, res.Error)
			assert.Equal(t, tt.want, res.Normalized)
			assert.Equal(t, tt.display, res.DisplayValue)
		})
	}
}

func TestValidate_Quantity(t *testing.T) {
	units := Constraints{AllowedUnits: []string{"m", "ft"}}

	res := Validate("12 M — typical mature height", KindQuantity, units)
	require.True(t, res.OK, res.Error)
	assert.Equal(t, Quantity{Value: 12, Unit: "m"}, res.Normalized)
	assert.Equal(t, "12 m", res.DisplayValue)

	res = Validate("1,200 litres/week — summer watering", KindQuantity, Constraints{})
	require.True(t, res.OK, res.Error)
	assert.Equal(t, Quantity{Value: 1200, Unit: "litres", Period: strptr("week")}, res.Normalized)

	res = Validate("30 yards — too far", KindQuantity, units)
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, ErrNotAllowed)

	res = Validate("12m — no space", KindQuantity, units)
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, ErrFormat)
}

func TestValidate_Enum(t *testing.T) {
	growth := Constraints{AllowedEnums: []string{"Slow", "Moderate", "Fast"}}

	res := Validate("moderate — about 30cm a year", KindEnum, growth)
	require.True(t, res.OK, res.Error)
	assert.Equal(t, "Moderate", res.Normalized)

	res = Validate("Rapid — very quick", KindEnum, growth)
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, ErrNotAllowed)

	res = Validate("Slow — anything", KindEnum, Constraints{})
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, ErrConfiguration)
}

func TestValidate_Range(t *testing.T) {
	res := Validate("5 — 8 — wait, this splits early", KindRange, Constraints{})
	assert.False(t, res.OK)

	for _, raw := range []string{"5-8 — zones", "5–8 — zones", "5 — 8zones", "5—8 — zones"} {
		res := Validate(raw, KindRange, Constraints{})
		if raw == "5 — 8zones" {
			assert.False(t, res.OK)
			continue
		}
		require.True(t, res.OK, "%q: %s", raw, res.Error)
		assert.Equal(t, Range{Min: 5, Max: 8}, res.Normalized)
		assert.Equal(t, "5–8", res.DisplayValue)
	}

	res = Validate("2.5-2.5 — exact", KindRange, Constraints{})
	require.True(t, res.OK)
	assert.Equal(t, "2.5–2.5", res.DisplayValue)

	res = Validate("-3-4 — negative", KindRange, Constraints{})
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, ErrFormat)
}

func TestValidate_Text(t *testing.T) {
	res := Validate("Prune after flowering — avoids removing buds", KindText, Constraints{})
	require.True(t, res.OK)
	assert.Equal(t, "Prune after flowering", res.Normalized)

	res = Validate("** ** — empty once stripped", KindText, Constraints{})
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, ErrEmptyValue)
}

func TestValidate_UnknownKind(t *testing.T) {
	res := Validate("x — y", Kind("matrix"), Constraints{})
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, ErrConfiguration)
}

func TestBind(t *testing.T) {
	fn := Bind(KindScore, Constraints{})
	assert.True(t, fn("42/100 — fine").OK)
	assert.False(t, fn("142/100 — no").OK)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Currency ")
	require.NoError(t, err)
	assert.Equal(t, KindCurrency, k)

	_, err = ParseKind("formula")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0", formatAmount(0))
	assert.Equal(t, "999", formatAmount(999))
	assert.Equal(t, "1,000", formatAmount(1000))
	assert.Equal(t, "1,234,567.89", formatAmount(1234567.89))
}

// Package validator turns loosely formatted inference answers of the form
// "Value — reason" into canonical, typed results per declared output kind.
package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind is the declared output kind of a skill column.
type Kind string

const (
	KindBadge    Kind = "badge"
	KindScore    Kind = "score"
	KindCurrency Kind = "currency"
	KindQuantity Kind = "quantity"
	KindEnum     Kind = "enum"
	KindRange    Kind = "range"
	KindText     Kind = "text"
)

// Kinds lists every supported output kind in display order.
var Kinds = []Kind{KindBadge, KindScore, KindCurrency, KindQuantity, KindEnum, KindRange, KindText}

// Valid reports whether k is a supported output kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseKind parses a case-insensitive kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: unknown output kind %q", ErrConfiguration, s)
	}
	return k, nil
}

// Error classes. Every failed Result wraps exactly one of these.
var (
	ErrMissingSeparator = errors.New("missing separator")
	ErrEmptyValue       = errors.New("empty value")
	ErrFormat           = errors.New("invalid format")
	ErrOutOfRange       = errors.New("out of range")
	ErrNotAllowed       = errors.New("value not allowed")
	ErrConfiguration    = errors.New("invalid configuration")
)

// Constraints are the kind-specific allow-lists and defaults declared by a skill.
type Constraints struct {
	AllowedValues     []string `json:"allowedValues,omitempty"`
	AllowedEnums      []string `json:"allowedEnums,omitempty"`
	AllowedUnits      []string `json:"allowedUnits,omitempty"`
	AllowedCurrencies []string `json:"allowedCurrencies,omitempty"`
	AllowedPeriods    []string `json:"allowedPeriods,omitempty"`
	DefaultUnit       string   `json:"defaultUnit,omitempty"`
	DefaultPeriod     string   `json:"defaultPeriod,omitempty"`
}

// Result is the canonical decomposition of one raw answer.
type Result struct {
	OK           bool   `json:"ok"`
	DisplayValue string `json:"displayValue,omitempty"`
	Reasoning    string `json:"reasoning,omitempty"`
	Normalized   any    `json:"normalized,omitempty"`
	Error        string `json:"error,omitempty"`
	Err          error  `json:"-"`
}

// Money is the normalized form of a currency answer.
type Money struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Period   *string `json:"period"`
}

// Quantity is the normalized form of a quantity answer.
type Quantity struct {
	Value  float64 `json:"value"`
	Unit   string  `json:"unit"`
	Period *string `json:"period"`
}

// Range is the normalized form of a range answer.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Func validates a raw answer against a kind and constraints it was bound to.
type Func func(raw string) Result

// Bind closes Validate over kind and c.
func Bind(kind Kind, c Constraints) Func {
	return func(raw string) Result {
		return Validate(raw, kind, c)
	}
}

// Periods accepted after a trailing slash on currency and quantity values.
var Periods = []string{"day", "week", "month", "year"}

// CurrencySymbols maps the accepted currency symbols to ISO codes.
var CurrencySymbols = map[string]string{
	"€": "EUR",
	"$": "USD",
	"£": "GBP",
}

var (
	separator        = regexp.MustCompile(`\s+[-\x{2013}\x{2014}]\s+`)
	scorePattern     = regexp.MustCompile(`^([+-]?\d+(?:\.\d+)?)\s*/\s*100$`)
	currencyPattern  = regexp.MustCompile(`^([€$£])\s*(\d{1,3}(?:,\d{3})+|\d+)(\.\d+)?(?:\s*/\s*([A-Za-z]+))?$`)
	quantityPattern  = regexp.MustCompile(`^(\d{1,3}(?:,\d{3})+|\d+)(\.\d+)?\s+([^\s\d/][^\s/]*)(?:\s*/\s*([A-Za-z]+))?$`)
	rangePattern     = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*[-\x{2013}\x{2014}]\s*(\d+(?:\.\d+)?)$`)
	whitespaceRun    = regexp.MustCompile(`\s+`)
	surroundingMarks = []string{"**", "\"", "'", "“", "”"}
)

// Split separates a raw answer at the first whitespace-surrounded hyphen,
// en-dash or em-dash. ok is false when no separator is present.
func Split(raw string) (value, reason string, ok bool) {
	s := strings.TrimSpace(raw)
	loc := separator.FindStringIndex(s)
	if loc == nil {
		return "", "", false
	}
	return cleanValue(s[:loc[0]]), strings.TrimSpace(s[loc[1]:]), true
}

func cleanValue(v string) string {
	v = strings.TrimSpace(v)
	for _, mark := range surroundingMarks {
		if len(v) >= 2*len(mark) && strings.HasPrefix(v, mark) && strings.HasSuffix(v, mark) {
			v = strings.TrimSpace(v[len(mark) : len(v)-len(mark)])
		}
	}
	return whitespaceRun.ReplaceAllString(v, " ")
}

// Validate parses raw according to kind. It never panics and never returns
// failures out of band: a rejected answer is a Result with OK false.
func Validate(raw string, kind Kind, c Constraints) Result {
	value, reason, ok := Split(raw)
	if !ok {
		return fail(fmt.Errorf("%w: expected \"<value> — <reason>\"", ErrMissingSeparator))
	}
	if value == "" {
		return fail(fmt.Errorf("%w: nothing before the separator", ErrEmptyValue))
	}

	var (
		display    string
		normalized any
		err        error
	)
	switch kind {
	case KindBadge:
		display, normalized, err = validateBadge(value, c)
	case KindScore:
		display, normalized, err = validateScore(value)
	case KindCurrency:
		display, normalized, err = validateCurrency(value, c)
	case KindQuantity:
		display, normalized, err = validateQuantity(value, c)
	case KindEnum:
		display, normalized, err = validateEnum(value, c)
	case KindRange:
		display, normalized, err = validateRange(value)
	case KindText:
		display, normalized = value, value
	default:
		err = fmt.Errorf("%w: unknown output kind %q", ErrConfiguration, kind)
	}
	if err != nil {
		return fail(err)
	}

	return Result{
		OK:           true,
		DisplayValue: display,
		Reasoning:    reason,
		Normalized:   normalized,
	}
}

func fail(err error) Result {
	return Result{OK: false, Error: err.Error(), Err: err}
}

func validateBadge(v string, c Constraints) (string, any, error) {
	if len(c.AllowedValues) == 0 {
		return v, v, nil
	}
	if canonical, ok := matchLiteral(v, c.AllowedValues); ok {
		return canonical, canonical, nil
	}
	return "", nil, fmt.Errorf("%w: %q is not one of %s", ErrNotAllowed, v, strings.Join(c.AllowedValues, ", "))
}

func validateScore(v string) (string, any, error) {
	m := scorePattern.FindStringSubmatch(v)
	if m == nil {
		return "", nil, fmt.Errorf("%w: expected N/100, got %q", ErrFormat, v)
	}
	if strings.Contains(m[1], ".") {
		return "", nil, fmt.Errorf("%w: score must be a whole number, got %q", ErrFormat, m[1])
	}
	n, err := strconv.Atoi(strings.TrimPrefix(m[1], "+"))
	if err != nil {
		return "", nil, fmt.Errorf("%w: cannot parse score %q", ErrFormat, m[1])
	}
	if n < 0 || n > 100 {
		return "", nil, fmt.Errorf("%w: score %d is outside 0-100", ErrOutOfRange, n)
	}
	return fmt.Sprintf("%d/100", n), n, nil
}

func validateCurrency(v string, c Constraints) (string, any, error) {
	m := currencyPattern.FindStringSubmatch(v)
	if m == nil {
		return "", nil, fmt.Errorf("%w: expected <symbol><amount>[/period], got %q", ErrFormat, v)
	}
	symbol := m[1]
	code := CurrencySymbols[symbol]
	if len(c.AllowedCurrencies) > 0 && !containsFold(c.AllowedCurrencies, symbol) && !containsFold(c.AllowedCurrencies, code) {
		return "", nil, fmt.Errorf("%w: currency %s is not one of %s", ErrNotAllowed, code, strings.Join(c.AllowedCurrencies, ", "))
	}
	amount, err := parseNumber(m[2], m[3])
	if err != nil {
		return "", nil, err
	}
	period, err := resolvePeriod(m[4], c)
	if err != nil {
		return "", nil, err
	}

	display := symbol + formatAmount(amount)
	if period != nil {
		display += "/" + *period
	}
	return display, Money{Amount: amount, Currency: code, Period: period}, nil
}

func validateQuantity(v string, c Constraints) (string, any, error) {
	m := quantityPattern.FindStringSubmatch(v)
	if m == nil {
		return "", nil, fmt.Errorf("%w: expected <number> <unit>[/period], got %q", ErrFormat, v)
	}
	value, err := parseNumber(m[1], m[2])
	if err != nil {
		return "", nil, err
	}
	unit := m[3]
	if len(c.AllowedUnits) > 0 {
		canonical, ok := matchLiteral(unit, c.AllowedUnits)
		if !ok {
			return "", nil, fmt.Errorf("%w: unit %q is not one of %s", ErrNotAllowed, unit, strings.Join(c.AllowedUnits, ", "))
		}
		unit = canonical
	}
	period, err := resolvePeriod(m[4], c)
	if err != nil {
		return "", nil, err
	}

	display := formatNumber(value) + " " + unit
	if period != nil {
		display += "/" + *period
	}
	return display, Quantity{Value: value, Unit: unit, Period: period}, nil
}

func validateEnum(v string, c Constraints) (string, any, error) {
	if len(c.AllowedEnums) == 0 {
		return "", nil, fmt.Errorf("%w: enum output declares no allowed values", ErrConfiguration)
	}
	canonical, ok := matchLiteral(v, c.AllowedEnums)
	if !ok {
		return "", nil, fmt.Errorf("%w: %q is not one of %s", ErrNotAllowed, v, strings.Join(c.AllowedEnums, ", "))
	}
	return canonical, canonical, nil
}

func validateRange(v string) (string, any, error) {
	m := rangePattern.FindStringSubmatch(v)
	if m == nil {
		return "", nil, fmt.Errorf("%w: expected <min>-<max>, got %q", ErrFormat, v)
	}
	lo, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return "", nil, fmt.Errorf("%w: cannot parse %q", ErrFormat, m[1])
	}
	hi, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return "", nil, fmt.Errorf("%w: cannot parse %q", ErrFormat, m[2])
	}
	if lo > hi {
		return "", nil, fmt.Errorf("%w: reversed range %s > %s", ErrOutOfRange, m[1], m[2])
	}
	return formatNumber(lo) + "–" + formatNumber(hi), Range{Min: lo, Max: hi}, nil
}

// resolvePeriod lowercases and checks a captured period, falling back to the
// declared default when the answer omits one.
func resolvePeriod(raw string, c Constraints) (*string, error) {
	p := strings.ToLower(raw)
	if p == "" {
		if c.DefaultPeriod == "" {
			return nil, nil
		}
		p = strings.ToLower(c.DefaultPeriod)
	}
	if !containsFold(Periods, p) {
		return nil, fmt.Errorf("%w: unknown period %q", ErrFormat, raw)
	}
	if len(c.AllowedPeriods) > 0 && !containsFold(c.AllowedPeriods, p) {
		return nil, fmt.Errorf("%w: period %q is not one of %s", ErrNotAllowed, p, strings.Join(c.AllowedPeriods, ", "))
	}
	return &p, nil
}

func parseNumber(integer, fraction string) (float64, error) {
	digits := strings.ReplaceAll(integer, ",", "") + fraction
	n, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: cannot parse number %q", ErrFormat, integer+fraction)
	}
	return n, nil
}

func matchLiteral(v string, allowed []string) (string, bool) {
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(a), v) {
			return a, true
		}
	}
	return "", false
}

func containsFold(list []string, v string) bool {
	_, ok := matchLiteral(v, list)
	return ok
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatAmount renders money with thousands separators and at most two decimals.
func formatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimSuffix(s, ".00")
	whole, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

package crontab

import (
	"fmt"
	"math/bits"
	"regexp"
	"strconv"
	"strings"
)

// Domain is the inclusive value range of one schedule field.
type Domain struct {
	Name string
	Min  int
	Max  int

	// sunday7 folds 7 onto 0 after expansion.
	sunday7 bool
}

var (
	Months   = Domain{Name: "months", Min: 1, Max: 12}
	Days     = Domain{Name: "days", Min: 1, Max: 31}
	Weekdays = Domain{Name: "weekdays", Min: 0, Max: 7, sunday7: true}
	Hours    = Domain{Name: "hours", Min: 0, Max: 23}
	Minutes  = Domain{Name: "minutes", Min: 0, Max: 59}
	Seconds  = Domain{Name: "seconds", Min: 0, Max: 59}
)

// FieldSet is the normalized, ascending, duplicate-free value set of a field.
// Every domain fits in 64 bits, so membership is a mask test.
type FieldSet struct {
	mask   uint64
	values []int
}

var reToken = regexp.MustCompile(`^(?:(\*)|\*/(\d+)|(\d+)|(\d+)-(\d+))$`)

// ParseField expands a comma-separated field expression over d.
func ParseField(expr string, d Domain) (FieldSet, error) {
	var mask uint64
	for _, tok := range strings.Split(expr, ",") {
		m, err := parseToken(tok, d)
		if err != nil {
			return FieldSet{}, err
		}
		mask |= m
	}
	if d.sunday7 && mask&(1<<7) != 0 {
		mask = mask&^(1<<7) | 1
	}
	if mask == 0 {
		return FieldSet{}, &FieldError{Field: d.Name, Token: expr, Err: ErrFieldRange}
	}
	return newFieldSet(mask), nil
}

// MustParseField is ParseField for static expressions.
func MustParseField(expr string, d Domain) FieldSet {
	f, err := ParseField(expr, d)
	if err != nil {
		panic(err)
	}
	return f
}

func parseToken(tok string, d Domain) (uint64, error) {
	fail := func(err error) (uint64, error) {
		return 0, &FieldError{Field: d.Name, Token: tok, Err: err}
	}
	g := reToken.FindStringSubmatch(tok)
	if g == nil {
		return fail(ErrFieldFormat)
	}
	switch {
	case g[1] != "":
		return span(d.Min, d.Max), nil
	case g[2] != "":
		// A step past the domain keeps only the multiples inside it; an empty
		// overall set is rejected by ParseField.
		n, err := strconv.Atoi(g[2])
		if err != nil {
			return fail(ErrFieldRange)
		}
		if n == 0 {
			return fail(ErrFieldFormat)
		}
		var m uint64
		for v := d.Min; v <= d.Max; v++ {
			if v%n == 0 {
				m |= 1 << uint(v)
			}
		}
		return m, nil
	case g[3] != "":
		v, err := strconv.Atoi(g[3])
		if err != nil || v < d.Min || v > d.Max {
			return fail(ErrFieldRange)
		}
		return 1 << uint(v), nil
	default:
		lo, err1 := strconv.Atoi(g[4])
		hi, err2 := strconv.Atoi(g[5])
		if err1 != nil || err2 != nil {
			return fail(ErrFieldRange)
		}
		if hi <= lo {
			return fail(fmt.Errorf("%w: bounds %d-%d", ErrFieldFormat, lo, hi))
		}
		if lo < d.Min || hi > d.Max {
			return fail(ErrFieldRange)
		}
		return span(lo, hi), nil
	}
}

func span(lo, hi int) uint64 {
	var m uint64
	for v := lo; v <= hi; v++ {
		m |= 1 << uint(v)
	}
	return m
}

func newFieldSet(mask uint64) FieldSet {
	vals := make([]int, 0, bits.OnesCount64(mask))
	for m := mask; m != 0; m &= m - 1 {
		vals = append(vals, bits.TrailingZeros64(m))
	}
	return FieldSet{mask: mask, values: vals}
}

// Has reports membership.
func (f FieldSet) Has(v int) bool {
	return v >= 0 && v < 64 && f.mask&(1<<uint(v)) != 0
}

// Values returns a copy of the members in ascending order.
func (f FieldSet) Values() []int {
	return append([]int(nil), f.values...)
}

func (f FieldSet) Len() int { return len(f.values) }

func (f FieldSet) String() string {
	parts := make([]string, len(f.values))
	for i, v := range f.values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

package imf

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// UUID is a 16-byte identifier whose textual XML form is "urn:uuid:"
// followed by the canonical 8-4-4-4-12 hex pattern. Binding a struct field
// of this type with a plain (namespace-less) xml tag is enough for
// encoding/xml to call UnmarshalText on the element or attribute text,
// which is how the teacher package binds uuid.UUID to ProtectionHeader's
// SystemID attribute.
type UUID [16]byte

var urnUUIDPattern = regexp.MustCompile(`^urn:uuid:[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ParseUUID implements the read_uuid scalar reader: the text must match
// "urn:uuid:" followed by eight hex groups of lengths 8-4-4-4-12
// (case-insensitive).
func ParseUUID(text string) (UUID, error) {
	text = strings.TrimSpace(text)
	if !urnUUIDPattern.MatchString(text) {
		return UUID{}, fmt.Errorf("%w: malformed UUID %q", ErrInvalidData, text)
	}
	parsed, err := uuid.Parse(text)
	if err != nil {
		return UUID{}, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return UUID(parsed), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so encoding/xml can
// decode CPL/AssetMap "Id"-like elements directly into a UUID field.
func (u *UUID) UnmarshalText(text []byte) error {
	parsed, err := ParseUUID(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler for round-tripping and
// logging.
func (u UUID) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

func (u UUID) String() string {
	return "urn:uuid:" + uuid.UUID(u).String()
}

// IsZero reports whether u is the zero UUID (used to detect a required
// Id/TrackId element that was absent from the XML).
func (u UUID) IsZero() bool {
	return u == UUID{}
}

// Rational is a signed num/den pair. All composition time arithmetic is
// rational; conversion to a host time base happens only at the scheduler
// boundary (demuxer.go, scheduler.go).
type Rational struct {
	Num int64
	Den int64
}

// ParseRational implements the read_rational scalar reader: text of the
// form "<num> <den>" (two whitespace-separated signed integers). den == 0
// is rejected.
func ParseRational(text string) (Rational, error) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return Rational{}, fmt.Errorf("%w: malformed rational %q", ErrInvalidData, text)
	}
	num, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Rational{}, fmt.Errorf("%w: rational numerator %q: %v", ErrInvalidData, fields[0], err)
	}
	den, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return Rational{}, fmt.Errorf("%w: rational denominator %q: %v", ErrInvalidData, fields[1], err)
	}
	if den == 0 {
		return Rational{}, fmt.Errorf("%w: rational denominator is zero in %q", ErrInvalidData, text)
	}
	return Rational{Num: num, Den: den}, nil
}

func (r *Rational) UnmarshalText(text []byte) error {
	parsed, err := ParseRational(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func (r Rational) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r Rational) String() string {
	return fmt.Sprintf("%d %d", r.Num, r.Den)
}

// Valid reports the edit-rate invariant: num > 0 and den > 0.
func (r Rational) Valid() bool {
	return r.Num > 0 && r.Den > 0
}

func (r Rational) IsZero() bool {
	return r.Num == 0
}

// Float64 is for logging/formatting only; control-flow decisions must
// never round-trip through it (§9).
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Add returns r+o using exact cross-multiplication, reduced by their gcd.
func (r Rational) Add(o Rational) Rational {
	num := r.Num*o.Den + o.Num*r.Den
	den := r.Den * o.Den
	return reduce(num, den)
}

// Mul returns r*o, reduced.
func (r Rational) Mul(o Rational) Rational {
	return reduce(r.Num*o.Num, r.Den*o.Den)
}

// Cmp returns -1, 0, or 1 as r is less than, equal to, or greater than o.
func (r Rational) Cmp(o Rational) int {
	lhs := r.Num * o.Den
	rhs := o.Num * r.Den
	if r.Den < 0 != (o.Den < 0) {
		// Normalize sign when one denominator is negative (ParseRational
		// accepts one; Add/Mul always return a positive denominator).
		lhs, rhs = -lhs, -rhs
	}
	switch {
	case lhs < rhs:
		return -1
	case lhs > rhs:
		return 1
	default:
		return 0
	}
}

func reduce(num, den int64) Rational {
	if den < 0 {
		num, den = -num, -den
	}
	if num == 0 {
		return Rational{Num: 0, Den: 1}
	}
	g := gcd(abs64(num), den)
	if g > 1 {
		num /= g
		den /= g
	}
	return Rational{Num: num, Den: den}
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// ParseULong implements the read_ulong scalar reader: an unsigned decimal
// integer fitting in 64 bits.
func ParseULong(text string) (uint64, error) {
	text = strings.TrimSpace(text)
	v, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed unsigned integer %q: %v", ErrInvalidData, text, err)
	}
	return v, nil
}

// ULong is a uint64 bound to XML text via ParseULong, giving overflow
// checking for granular fields (EntryPoint, SourceDuration, RepeatCount,
// Offset, Length) that the bare uint64 xml-decoding path does not enforce
// the same way on all platforms.
type ULong uint64

func (u *ULong) UnmarshalText(text []byte) error {
	parsed, err := ParseULong(string(text))
	if err != nil {
		return err
	}
	*u = ULong(parsed)
	return nil
}

func (u ULong) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatUint(uint64(u), 10)), nil
}

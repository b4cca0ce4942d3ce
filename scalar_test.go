package imf

import (
	"errors"
	"testing"

	"github.com/matryer/is"
)

func TestParseUUID(t *testing.T) {
	is := is.New(t)

	u, err := ParseUUID("urn:uuid:11111111-1111-1111-1111-111111111111")
	is.NoErr(err)
	is.Equal(u.String(), "urn:uuid:11111111-1111-1111-1111-111111111111")
	is.Equal(u.IsZero(), false)
}

func TestParseUUIDMalformed(t *testing.T) {
	is := is.New(t)

	cases := []string{
		"urn:uuid:zzzz",
		"11111111-1111-1111-1111-111111111111",
		"",
		"urn:uuid:11111111-1111-1111-1111-11111111111",
	}
	for _, c := range cases {
		_, err := ParseUUID(c)
		is.True(err != nil)
		is.True(errors.Is(err, ErrInvalidData))
	}
}

func TestUUIDZero(t *testing.T) {
	is := is.New(t)
	var u UUID
	is.True(u.IsZero())
}

func TestParseRational(t *testing.T) {
	is := is.New(t)

	r, err := ParseRational("24000 1001")
	is.NoErr(err)
	is.Equal(r.Num, int64(24000))
	is.Equal(r.Den, int64(1001))
	is.True(r.Valid())
}

func TestParseRationalMalformed(t *testing.T) {
	is := is.New(t)

	cases := []string{"24", "24 0", "a b", "24 1001 1", ""}
	for _, c := range cases {
		_, err := ParseRational(c)
		is.True(err != nil)
		is.True(errors.Is(err, ErrInvalidData))
	}
}

func TestRationalArithmetic(t *testing.T) {
	is := is.New(t)

	a := Rational{Num: 1, Den: 2}
	b := Rational{Num: 1, Den: 3}

	sum := a.Add(b)
	is.Equal(sum, Rational{Num: 5, Den: 6})

	prod := a.Mul(b)
	is.Equal(prod, Rational{Num: 1, Den: 6})

	is.Equal(a.Cmp(b), 1)
	is.Equal(b.Cmp(a), -1)
	is.Equal(a.Cmp(a), 0)
}

func TestRationalReduces(t *testing.T) {
	is := is.New(t)

	r := Rational{Num: 2, Den: 4}.Add(Rational{Num: 0, Den: 1})
	is.Equal(r, Rational{Num: 1, Den: 2})
}

func TestParseULong(t *testing.T) {
	is := is.New(t)

	v, err := ParseULong(" 48 ")
	is.NoErr(err)
	is.Equal(v, uint64(48))

	_, err = ParseULong("-1")
	is.True(err != nil)
	is.True(errors.Is(err, ErrInvalidData))
}

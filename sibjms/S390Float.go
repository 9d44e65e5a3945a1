// Copyright (c) IBM Corporation 2019.
//
// This program and the accompanying materials are made available under the
// terms of the Eclipse Public License 2.0, which is available at
// http://www.eclipse.org/legal/epl-2.0.
//
// SPDX-License-Identifier: EPL-2.0

package sibjms

import (
	"math"

	"github.com/pkg/errors"
)

// S/390 hexadecimal floating point: sign bit, 7-bit excess-64 base-16
// exponent, then a 24-bit (short) or 56-bit (long) fraction.

const (
	hfpBias      = 64
	hfpMaxChar   = 127
	hfpSignShort = uint32(1) << 31
	hfpSignLong  = uint64(1) << 63
)

var errHFPRange = errors.New("value cannot be represented as S/390 floating point")

// hfpSplit returns the base-16 exponent e and fraction bits for a > 0 such
// that a = frac * 2^(exp) and the HFP fraction is frac * 2^(exp-4e).
func hfpSplit(a float64) (frac float64, exp int, e int) {
	frac, exp = math.Frexp(a)
	e = exp / 4
	if exp%4 > 0 {
		e++
	}
	return frac, exp, e
}

func float32ToS390(v float32) (uint32, error) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.Wrapf(errHFPRange, "%v", v)
	}
	var sign uint32
	if math.Signbit(f) {
		sign = hfpSignShort
	}
	if f == 0 {
		return sign, nil
	}

	frac, exp, e := hfpSplit(math.Abs(f))
	mant := uint32(math.RoundToEven(math.Ldexp(frac, exp-4*e+24)))
	if mant == 1<<24 {
		mant >>= 4
		e++
	}
	char := e + hfpBias
	if char > hfpMaxChar {
		return 0, errors.Wrapf(errHFPRange, "%v", v)
	}
	if char < 0 {
		return sign, nil
	}
	return sign | uint32(char)<<24 | mant, nil
}

func float64ToS390(v float64) (uint64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Wrapf(errHFPRange, "%v", v)
	}
	var sign uint64
	if math.Signbit(v) {
		sign = hfpSignLong
	}
	if v == 0 {
		return sign, nil
	}

	frac, exp, e := hfpSplit(math.Abs(v))
	// at most 53 significant bits shifted into a 56-bit field, so exact
	mant := uint64(math.Ldexp(frac, exp-4*e+56))
	char := e + hfpBias
	if char > hfpMaxChar {
		return 0, errors.Wrapf(errHFPRange, "%v", v)
	}
	if char < 0 {
		return sign, nil
	}
	return sign | uint64(char)<<56 | mant, nil
}

func s390ToFloat32(bits uint32) float32 {
	char := int(bits>>24) & 0x7f
	mant := bits & 0x00ffffff
	f := math.Ldexp(float64(mant), 4*(char-hfpBias)-24)
	if bits&hfpSignShort != 0 {
		f = -f
	}
	return float32(f)
}

func s390ToFloat64(bits uint64) float64 {
	char := int(bits>>56) & 0x7f
	mant := bits & 0x00ffffffffffffff
	f := math.Ldexp(float64(mant), 4*(char-hfpBias)-56)
	if bits&hfpSignLong != 0 {
		f = -f
	}
	return f
}

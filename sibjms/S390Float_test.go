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
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func TestS390Float(t *testing.T) {
	Convey("Short floats encode to known HFP bit patterns", t, func() {
		for _, c := range []struct {
			in   float32
			bits uint32
		}{
			{1.0, 0x41100000},
			{-118.625, 0xC276A000},
			{0.5, 0x40800000},
			{16.0, 0x42100000},
			{0, 0},
		} {
			got, err := float32ToS390(c.in)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, c.bits)
			So(s390ToFloat32(c.bits), ShouldEqual, c.in)
		}
	})

	Convey("Long floats encode to known HFP bit patterns", t, func() {
		got, err := float64ToS390(1.0)
		So(err, ShouldBeNil)
		So(got, ShouldEqual, uint64(0x4110000000000000))

		got, err = float64ToS390(-118.625)
		So(err, ShouldBeNil)
		So(got, ShouldEqual, uint64(0xC276A00000000000))
	})

	Convey("Doubles survive a round trip exactly", t, func() {
		for _, v := range []float64{math.Pi, -1e-30, 123456789.125, 7.2e75} {
			bits, err := float64ToS390(v)
			So(err, ShouldBeNil)
			So(s390ToFloat64(bits), ShouldEqual, v)
		}
	})

	Convey("Negative zero keeps its sign", t, func() {
		bits, err := float32ToS390(float32(math.Copysign(0, -1)))
		So(err, ShouldBeNil)
		So(bits, ShouldEqual, uint32(0x80000000))
	})

	Convey("Values outside the HFP range are rejected", t, func() {
		_, err := float64ToS390(math.Inf(1))
		So(errors.Cause(err), ShouldEqual, errHFPRange)

		_, err = float64ToS390(math.NaN())
		So(errors.Cause(err), ShouldEqual, errHFPRange)

		_, err = float64ToS390(1e300)
		So(errors.Cause(err), ShouldEqual, errHFPRange)
	})

	Convey("Values too small for HFP become zero", t, func() {
		bits, err := float64ToS390(1e-300)
		So(err, ShouldBeNil)
		So(bits, ShouldEqual, uint64(0))
	})
}

func TestModifiedUTF8(t *testing.T) {
	Convey("NUL is written as two bytes", t, func() {
		So(encodeModifiedUTF8("a\x00b"), ShouldResemble, []byte{'a', 0xc0, 0x80, 'b'})
	})

	Convey("Supplementary characters become two three-byte surrogates", t, func() {
		data := encodeModifiedUTF8("\U0001F600")
		So(data, ShouldResemble, []byte{0xed, 0xa0, 0xbd, 0xed, 0xb8, 0x80})

		s, err := decodeModifiedUTF8(data)
		So(err, ShouldBeNil)
		So(s, ShouldEqual, "\U0001F600")
	})

	Convey("Mixed text round trips", t, func() {
		in := "héllo wörld \x00 €"
		s, err := decodeModifiedUTF8(encodeModifiedUTF8(in))
		So(err, ShouldBeNil)
		So(s, ShouldEqual, in)
	})

	Convey("Truncated sequences are malformed", t, func() {
		_, err := decodeModifiedUTF8([]byte{'a', 0xe2, 0x82})
		So(errors.Cause(err), ShouldEqual, errMalformedUTF)

		_, err = decodeModifiedUTF8([]byte{0xff})
		So(errors.Cause(err), ShouldEqual, errMalformedUTF)
	})
}

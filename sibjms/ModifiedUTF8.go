// Copyright (c) IBM Corporation 2019.
//
// This program and the accompanying materials are made available under the
// terms of the Eclipse Public License 2.0, which is available at
// http://www.eclipse.org/legal/epl-2.0.
//
// SPDX-License-Identifier: EPL-2.0

package sibjms

import (
	"unicode/utf16"
	"unicode/utf8"

	"github.com/pkg/errors"
)

const maxUTFLength = 65535

var errMalformedUTF = errors.New("malformed modified UTF-8 input")

// encodeModifiedUTF8 encodes s the way java.io.DataOutput.writeUTF does: NUL
// takes two bytes and supplementary characters are written as a surrogate
// pair of three-byte sequences.
func encodeModifiedUTF8(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r >= 0x10000 {
			hi, lo := utf16.EncodeRune(r)
			out = appendUTF16Unit(out, uint16(hi))
			out = appendUTF16Unit(out, uint16(lo))
			continue
		}
		out = appendUTF16Unit(out, uint16(r))
	}
	return out
}

func appendUTF16Unit(out []byte, c uint16) []byte {
	switch {
	case c >= 0x0001 && c <= 0x007f:
		return append(out, byte(c))
	case c <= 0x07ff:
		return append(out, byte(0xc0|(c>>6)&0x1f), byte(0x80|c&0x3f))
	default:
		return append(out, byte(0xe0|(c>>12)&0x0f), byte(0x80|(c>>6)&0x3f), byte(0x80|c&0x3f))
	}
}

// decodeModifiedUTF8 is the inverse of encodeModifiedUTF8.
func decodeModifiedUTF8(b []byte) (string, error) {
	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c&0x80 == 0:
			units = append(units, uint16(c))
			i++
		case c&0xe0 == 0xc0:
			if i+1 >= len(b) || b[i+1]&0xc0 != 0x80 {
				return "", errors.Wrapf(errMalformedUTF, "offset %d", i)
			}
			units = append(units, uint16(c&0x1f)<<6|uint16(b[i+1]&0x3f))
			i += 2
		case c&0xf0 == 0xe0:
			if i+2 >= len(b) || b[i+1]&0xc0 != 0x80 || b[i+2]&0xc0 != 0x80 {
				return "", errors.Wrapf(errMalformedUTF, "offset %d", i)
			}
			units = append(units, uint16(c&0x0f)<<12|uint16(b[i+1]&0x3f)<<6|uint16(b[i+2]&0x3f))
			i += 3
		default:
			return "", errors.Wrapf(errMalformedUTF, "offset %d", i)
		}
	}

	runes := utf16.Decode(units)
	buf := make([]byte, 0, len(b))
	for _, r := range runes {
		buf = utf8.AppendRune(buf, r)
	}
	return string(buf), nil
}

/*
Copyright (C) 2018 Daniel Morandini

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as
published by the Free Software Foundation, either version 3 of the
License, or (at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/vmihailenco/msgpack/v5"
)

// Msgpack is the default codec. MessagePack values carry their own length,
// so frames are the plain encoded values, one after the other.
var Msgpack Codec = msgpackCodec{}

type msgpackCodec struct{}

func (msgpackCodec) Marshal(v interface{}) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, errors.New("codec: msgpack: " + err.Error())
	}
	return b, nil
}

// Unmarshal decodes integers as int64 or uint64 and floats as float64,
// whatever width the sender used. Binary data stays []byte.
func (msgpackCodec) Unmarshal(buf []byte) (interface{}, int, error) {
	if len(buf) == 0 {
		return nil, 0, ErrIncomplete
	}

	r := bytes.NewReader(buf)
	v, err := msgpack.NewDecoder(r).DecodeInterface()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, 0, ErrIncomplete
		}
		return nil, 0, malformed("msgpack: %v", err)
	}

	return widen(v), len(buf) - r.Len(), nil
}

// widen converts sized numbers into int64, uint64 and float64.
func widen(v interface{}) interface{} {
	switch t := v.(type) {
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint8:
		return uint64(t)
	case uint16:
		return uint64(t)
	case uint32:
		return uint64(t)
	case float32:
		return float64(t)
	case []interface{}:
		for i, e := range t {
			t[i] = widen(e)
		}
	case map[string]interface{}:
		for k, e := range t {
			t[k] = widen(e)
		}
	case map[interface{}]interface{}:
		m := make(map[interface{}]interface{}, len(t))
		for k, e := range t {
			m[widen(k)] = widen(e)
		}
		return m
	}
	return v
}

// FrameSize walks the headers of the value at the start of buf, skipping
// payloads, without decoding anything.
func (msgpackCodec) FrameSize(buf []byte) int {
	off := 0
	pending := 1 // values still to be walked

	for pending > 0 {
		if off >= len(buf) {
			return off + pending
		}

		c := buf[off]
		pending--

		head, size, children := 1, 0, 0
		switch {
		case c <= 0x7f, c >= 0xe0, c == 0xc0, c == 0xc2, c == 0xc3:
		case c <= 0x8f:
			children = 2 * int(c&0x0f)
		case c <= 0x9f:
			children = int(c & 0x0f)
		case c <= 0xbf:
			size = int(c & 0x1f)
		case c == 0xc1:
			return -1
		default:
			var lenSize int
			head, lenSize = fixedHeader(c)
			if off+head > len(buf) {
				return off + head + pending
			}
			if lenSize > 0 {
				n := readLen(buf[off+1 : off+1+lenSize])
				switch c {
				case 0xdc, 0xdd:
					children = n
				case 0xde, 0xdf:
					children = 2 * n
				default:
					size = n
				}
			}
		}

		off += head + size
		if pending > math.MaxInt32-children {
			return -1
		}
		pending += children
	}

	return off
}

// fixedHeader returns the header length of the non fix code c and how many
// of its bytes, after the code, hold a length.
func fixedHeader(c byte) (head, lenSize int) {
	switch c {
	case 0xc4, 0xd9: // bin8, str8
		return 2, 1
	case 0xc5, 0xda, 0xdc, 0xde: // bin16, str16, array16, map16
		return 3, 2
	case 0xc6, 0xdb, 0xdd, 0xdf: // bin32, str32, array32, map32
		return 5, 4
	case 0xc7: // ext8
		return 3, 1
	case 0xc8: // ext16
		return 4, 2
	case 0xc9: // ext32
		return 6, 4
	case 0xcc, 0xd0: // uint8, int8
		return 2, 0
	case 0xcd, 0xd1: // uint16, int16
		return 3, 0
	case 0xca, 0xce, 0xd2: // float32, uint32, int32
		return 5, 0
	case 0xcb, 0xcf, 0xd3: // float64, uint64, int64
		return 9, 0
	case 0xd4: // fixext1
		return 3, 0
	case 0xd5: // fixext2
		return 4, 0
	case 0xd6: // fixext4
		return 6, 0
	case 0xd7: // fixext8
		return 10, 0
	case 0xd8: // fixext16
		return 18, 0
	}
	return 1, 0
}

func readLen(b []byte) int {
	switch len(b) {
	case 1:
		return int(b[0])
	case 2:
		return int(binary.BigEndian.Uint16(b))
	default:
		return int(binary.BigEndian.Uint32(b))
	}
}

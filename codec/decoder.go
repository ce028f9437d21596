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
	"errors"
)

// Decoder rebuilds values from a byte stream that arrives in chunks of
// arbitrary size. Bytes that do not yet form a complete value are kept
// until the next Feed. A Decoder is not safe for concurrent use.
type Decoder struct {
	codec Codec
	buf   []byte
	err   error

	// need is the size the buffer must reach before decoding is worth a try.
	need int
}

// NewDecoder returns a Decoder using c to decode values.
func NewDecoder(c Codec) *Decoder {
	return &Decoder{codec: c}
}

// Feed appends p to the bytes waiting to be decoded.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Next returns the next complete value. It returns ErrIncomplete when the
// buffered bytes do not contain one. Once a malformed value is found the
// decoder is broken and Next keeps on returning the same error.
func (d *Decoder) Next() (interface{}, error) {
	if d.err != nil {
		return nil, d.err
	}

	if len(d.buf) == 0 || len(d.buf) < d.need {
		return nil, ErrIncomplete
	}
	if s, ok := d.codec.(Sizer); ok {
		// A negative size is left to Unmarshal, which reports the reason.
		if d.need = s.FrameSize(d.buf); d.need > len(d.buf) {
			return nil, ErrIncomplete
		}
	}

	v, n, err := d.codec.Unmarshal(d.buf)
	if err != nil {
		if !errors.Is(err, ErrIncomplete) {
			d.err = err
		}
		return nil, err
	}

	d.need = 0
	d.buf = append(d.buf[:0], d.buf[n:]...)
	return v, nil
}

// Decode feeds p and returns every value that became complete. Values
// decoded before a malformed one are returned together with the error.
func (d *Decoder) Decode(p []byte) ([]interface{}, error) {
	d.Feed(p)

	var vs []interface{}
	for {
		v, err := d.Next()
		if errors.Is(err, ErrIncomplete) {
			return vs, nil
		}
		if err != nil {
			return vs, err
		}
		vs = append(vs, v)
	}
}

// Buffered returns the number of bytes waiting for the rest of their value.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

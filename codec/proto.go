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

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// MaxProtobufFrame is the largest protobuf frame accepted.
const MaxProtobufFrame = 16 << 20

// maxVarintLen is the longest encoding of a 64 bit varint.
const maxVarintLen = 10

// Protobuf encodes values as google.protobuf.Value messages, each one
// prefixed with its length as an unsigned varint. Numbers are always
// decoded as float64.
var Protobuf Codec = protobufCodec{}

type protobufCodec struct{}

func (protobufCodec) Marshal(v interface{}) ([]byte, error) {
	n, err := normalize(v)
	if err != nil {
		return nil, err
	}

	pv, err := structpb.NewValue(n)
	if err != nil {
		return nil, errors.New("codec: protobuf: " + err.Error())
	}

	b, err := proto.Marshal(pv)
	if err != nil {
		return nil, errors.New("codec: protobuf: " + err.Error())
	}

	frame := make([]byte, 0, len(b)+maxVarintLen)
	frame = protowire.AppendVarint(frame, uint64(len(b)))
	return append(frame, b...), nil
}

func (protobufCodec) Unmarshal(buf []byte) (interface{}, int, error) {
	if !varintComplete(buf) {
		if len(buf) >= maxVarintLen {
			return nil, 0, malformed("protobuf: frame length overflow")
		}
		return nil, 0, ErrIncomplete
	}

	size, hl := protowire.ConsumeVarint(buf)
	if hl < 0 {
		return nil, 0, malformed("protobuf: %v", protowire.ParseError(hl))
	}
	if size > MaxProtobufFrame {
		return nil, 0, malformed("protobuf: frame too big (%v bytes)", size)
	}

	end := hl + int(size)
	if len(buf) < end {
		return nil, 0, ErrIncomplete
	}

	pv := new(structpb.Value)
	if err := proto.Unmarshal(buf[hl:end], pv); err != nil {
		return nil, 0, malformed("protobuf: %v", err)
	}

	return pv.AsInterface(), end, nil
}

// FrameSize reads the length prefix only.
func (protobufCodec) FrameSize(buf []byte) int {
	if !varintComplete(buf) {
		if len(buf) >= maxVarintLen {
			return -1
		}
		return len(buf) + 1
	}

	size, hl := protowire.ConsumeVarint(buf)
	if hl < 0 || size > MaxProtobufFrame {
		return -1
	}
	return hl + int(size)
}

// varintComplete tells whether buf starts with a terminated varint.
func varintComplete(buf []byte) bool {
	for i := 0; i < len(buf) && i < maxVarintLen; i++ {
		if buf[i] < 0x80 {
			return true
		}
	}
	return false
}

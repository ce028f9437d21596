package codec_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/danielmorandini/medusa/codec"
	"github.com/stretchr/testify/require"
)

func stream(t *testing.T, c codec.Codec, vs ...interface{}) []byte {
	var b []byte
	for _, v := range vs {
		frame, err := c.Marshal(v)
		require.NoError(t, err)
		b = append(b, frame...)
	}
	return b
}

func decodeChunked(t *testing.T, c codec.Codec, b []byte, size int) []interface{} {
	d := codec.NewDecoder(c)

	var out []interface{}
	for len(b) > 0 {
		n := size
		if n > len(b) {
			n = len(b)
		}
		vs, err := d.Decode(b[:n])
		require.NoError(t, err)
		out = append(out, vs...)
		b = b[n:]
	}
	require.Zero(t, d.Buffered())
	return out
}

func TestDecoder_chunkIndependence(t *testing.T) {
	values := []interface{}{
		"room1",
		map[string]interface{}{"play": []interface{}{"42"}},
		map[string]interface{}{"update": []interface{}{"room1", map[string]interface{}{"state": "playing", "elapsed": 12.5}}},
		map[string]interface{}{"volume": []interface{}{true, nil, "x"}},
	}

	for _, name := range []string{codec.NameMsgpack, codec.NameProtobuf} {
		c, err := codec.Lookup(name)
		require.NoError(t, err)

		b := stream(t, c, values...)
		whole := decodeChunked(t, c, b, len(b))
		require.Len(t, whole, len(values), name)

		for _, size := range []int{1, 2, 3, 7, 64} {
			chunked := decodeChunked(t, c, b, size)
			require.Equal(t, whole, chunked, "%v: chunk size %d", name, size)
		}
	}
}

func TestMsgpack_roundTrip(t *testing.T) {
	call := map[string]interface{}{
		"jump_to": []interface{}{"room1", int64(-30), uint64(1 << 40), 0.25, []byte{1, 2}},
	}

	b, err := codec.Msgpack.Marshal(call)
	require.NoError(t, err)

	v, n, err := codec.Msgpack.Unmarshal(b)
	require.NoError(t, err)
	require.Equal(t, len(b), n)
	require.Equal(t, call, v)
}

func TestMsgpack_widensNumbers(t *testing.T) {
	b := stream(t, codec.Msgpack, []interface{}{int8(-3), uint16(7), float32(0.5), 5})

	v, _, err := codec.Msgpack.Unmarshal(b)
	require.NoError(t, err)
	require.Equal(t, []interface{}{int64(-3), uint64(7), float64(0.5), int64(5)}, v)
}

func TestFrameSize(t *testing.T) {
	values := []interface{}{
		"room1",
		strings.Repeat("x", 300),
		[]byte{1, 2, 3},
		map[string]interface{}{"jump_to": []interface{}{"room1", int64(-30), uint64(1 << 40), 0.25, nil, true}},
		map[string]interface{}{"update": []interface{}{"room1", map[string]interface{}{"state": "playing"}}},
	}

	for _, c := range []codec.Codec{codec.Msgpack, codec.Protobuf} {
		s := c.(codec.Sizer)
		for _, v := range values {
			b := stream(t, c, v)
			require.Equal(t, len(b), s.FrameSize(b))
			require.Equal(t, len(b), s.FrameSize(append(b, 0x01, 0x02)))

			for i := 0; i < len(b); i++ {
				n := s.FrameSize(b[:i])
				require.Greater(t, n, i, "prefix of %d bytes", i)
				require.LessOrEqual(t, n, len(b), "prefix of %d bytes", i)
			}
		}
	}

	require.Equal(t, -1, codec.Msgpack.(codec.Sizer).FrameSize([]byte{0xc1}))
	require.Equal(t, -1, codec.Protobuf.(codec.Sizer).FrameSize([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}))
}

// counting wraps a codec and counts Unmarshal calls.
type counting struct {
	codec.Codec
	calls int
}

func (c *counting) Unmarshal(buf []byte) (interface{}, int, error) {
	c.calls++
	return c.Codec.Unmarshal(buf)
}

func (c *counting) FrameSize(buf []byte) int {
	return c.Codec.(codec.Sizer).FrameSize(buf)
}

func TestDecoder_byteByByte(t *testing.T) {
	long := strings.Repeat("x", 1000)

	for _, name := range []string{codec.NameMsgpack, codec.NameProtobuf} {
		base, err := codec.Lookup(name)
		require.NoError(t, err)

		c := &counting{Codec: base}
		b := stream(t, c, long, "room1")

		var out []interface{}
		d := codec.NewDecoder(c)
		for i := range b {
			vs, err := d.Decode(b[i : i+1])
			require.NoError(t, err)
			out = append(out, vs...)
		}

		require.Equal(t, []interface{}{long, "room1"}, out)
		require.LessOrEqual(t, c.calls, 2, name)
	}
}

func TestMsgpack_typedArguments(t *testing.T) {
	b, err := codec.Msgpack.Marshal(map[string][]string{"play": {"42"}})
	require.NoError(t, err)

	v, _, err := codec.Msgpack.Unmarshal(b)
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"play": []interface{}{"42"}}, v)
}

func TestProtobuf_numbersAsFloat(t *testing.T) {
	b, err := codec.Protobuf.Marshal(map[string][]int{"jump_to": {90}})
	require.NoError(t, err)

	v, n, err := codec.Protobuf.Unmarshal(b)
	require.NoError(t, err)
	require.Equal(t, len(b), n)
	require.Equal(t, map[string]interface{}{"jump_to": []interface{}{float64(90)}}, v)
}

func TestUnmarshal_incomplete(t *testing.T) {
	for _, c := range []codec.Codec{codec.Msgpack, codec.Protobuf} {
		b := stream(t, c, map[string]interface{}{"state": []interface{}{}})

		_, _, err := c.Unmarshal(nil)
		require.True(t, errors.Is(err, codec.ErrIncomplete))

		_, _, err = c.Unmarshal(b[:len(b)-1])
		require.True(t, errors.Is(err, codec.ErrIncomplete))
	}
}

func TestDecoder_malformed(t *testing.T) {
	d := codec.NewDecoder(codec.Msgpack)

	good := stream(t, codec.Msgpack, "room1")
	vs, err := d.Decode(append(good, 0xc1))
	require.Error(t, err)
	require.True(t, errors.Is(err, codec.ErrMalformed))
	require.Equal(t, []interface{}{"room1"}, vs)

	// the decoder stays broken
	_, err = d.Next()
	require.True(t, errors.Is(err, codec.ErrMalformed))

	pd := codec.NewDecoder(codec.Protobuf)
	_, err = pd.Decode([]byte{3, 0xff, 0xff, 0xff})
	require.True(t, errors.Is(err, codec.ErrMalformed))

	pd = codec.NewDecoder(codec.Protobuf)
	_, err = pd.Decode([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff})
	require.True(t, errors.Is(err, codec.ErrMalformed))
}

func TestLookup(t *testing.T) {
	c, err := codec.Lookup("")
	require.NoError(t, err)
	require.Equal(t, codec.Msgpack, c)

	_, err = codec.Lookup("xml")
	require.Error(t, err)

	require.Contains(t, codec.Names(), codec.NameProtobuf)
}

func TestRegister(t *testing.T) {
	c := &counting{Codec: codec.Msgpack}
	codec.Register("counting", c)

	got, err := codec.Lookup("counting")
	require.NoError(t, err)
	require.Equal(t, c, got)
	require.Contains(t, codec.Names(), "counting")

	b := stream(t, got, "room1")
	vs, err := codec.NewDecoder(got).Decode(b)
	require.NoError(t, err)
	require.Equal(t, []interface{}{"room1"}, vs)
	require.Equal(t, 1, c.calls)
}

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

// Package codec provides the wire encodings used by medusa connections,
// together with a Decoder able to rebuild values from a stream of bytes
// delivered in chunks of any size.
package codec

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Codec names.
const (
	NameMsgpack  = "msgpack"
	NameProtobuf = "protobuf"
)

// DefaultName is the codec used when none is configured.
const DefaultName = NameMsgpack

var (
	// ErrIncomplete is returned by Unmarshal when buf does not yet
	// contain a complete value.
	ErrIncomplete = errors.New("codec: incomplete value")

	// ErrMalformed wraps every error caused by bytes that can never
	// become a valid value.
	ErrMalformed = errors.New("codec: malformed value")
)

// Codec encodes values into self delimiting frames and decodes them back.
type Codec interface {
	// Marshal encodes v into a single frame.
	Marshal(v interface{}) ([]byte, error)

	// Unmarshal decodes the first value contained in buf, returning it
	// together with the number of bytes consumed. Returns ErrIncomplete
	// when more bytes are needed.
	Unmarshal(buf []byte) (interface{}, int, error)
}

// Sizer is implemented by codecs able to tell how long a frame is from its
// first bytes. Decoders use it to avoid decoding frames that cannot be
// complete yet.
type Sizer interface {
	// FrameSize returns the length of the frame starting at buf when
	// buf holds all of it, otherwise a lower bound greater than
	// len(buf). Returns -1 when buf cannot start a valid frame.
	FrameSize(buf []byte) int
}

var (
	codecsMu sync.RWMutex
	codecs   = map[string]Codec{
		NameMsgpack:  Msgpack,
		NameProtobuf: Protobuf,
	}
)

// Register makes c available under name. Registering the same name twice
// replaces the previous codec.
func Register(name string, c Codec) {
	codecsMu.Lock()
	defer codecsMu.Unlock()
	codecs[name] = c
}

// Lookup returns the codec registered with name. An empty name selects
// DefaultName.
func Lookup(name string) (Codec, error) {
	if name == "" {
		name = DefaultName
	}

	codecsMu.RLock()
	defer codecsMu.RUnlock()
	c, ok := codecs[name]
	if !ok {
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
	return c, nil
}

// Names returns the sorted list of registered codecs.
func Names() []string {
	codecsMu.RLock()
	defer codecsMu.RUnlock()

	names := make([]string, 0, len(codecs))
	for name := range codecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func malformed(format string, v ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrMalformed}, v...)...)
}

// normalize turns typed slices and string keyed maps into their
// []interface{} and map[string]interface{} counterparts, which every codec
// is able to handle.
func normalize(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case nil, bool, string, []byte,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v, nil
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			n, err := normalize(e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			n, err := normalize(e)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("codec: unsupported map key %v (%T)", k, k)
			}
			n, err := normalize(e)
			if err != nil {
				return nil, err
			}
			out[ks] = n
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]interface{}, rv.Len())
		for i := range out {
			n, err := normalize(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("codec: unsupported map key type %v", rv.Type().Key())
		}
		out := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			n, err := normalize(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			out[iter.Key().String()] = n
		}
		return out, nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return normalize(rv.Elem().Interface())
	}

	return nil, fmt.Errorf("codec: unsupported type %T", v)
}

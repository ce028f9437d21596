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

package proxy

import (
	"fmt"
	"math"
)

// Args are the positional arguments of a remote call.
type Args []interface{}

// Len returns the number of arguments.
func (a Args) Len() int {
	return len(a)
}

func (a Args) at(i int) (interface{}, error) {
	if i < 0 || i >= len(a) {
		return nil, fmt.Errorf("proxy: missing argument %d (found %d)", i, len(a))
	}
	return a[i], nil
}

func mistyped(i int, want string, v interface{}) error {
	return fmt.Errorf("proxy: argument %d: wanted %v, found %T", i, want, v)
}

// String returns the i-th argument as a string.
func (a Args) String(i int) (string, error) {
	v, err := a.at(i)
	if err != nil {
		return "", err
	}

	switch t := v.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	}
	return "", mistyped(i, "string", v)
}

// Int returns the i-th argument as an integer. Floats without a fractional
// part are accepted, since some codecs only know about float numbers.
func (a Args) Int(i int) (int64, error) {
	v, err := a.at(i)
	if err != nil {
		return 0, err
	}

	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case uint:
		if uint64(t) > math.MaxInt64 {
			return 0, fmt.Errorf("proxy: argument %d: %v overflows int64", i, t)
		}
		return int64(t), nil
	case uint8:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint64:
		if t > math.MaxInt64 {
			return 0, fmt.Errorf("proxy: argument %d: %v overflows int64", i, t)
		}
		return int64(t), nil
	case float32:
		return floatToInt(i, float64(t))
	case float64:
		return floatToInt(i, t)
	}
	return 0, mistyped(i, "integer", v)
}

// floatToInt accepts floats in [-2^63, 2^63).
func floatToInt(i int, f float64) (int64, error) {
	if f != math.Trunc(f) || f >= 1<<63 || f < math.MinInt64 {
		return 0, fmt.Errorf("proxy: argument %d: %v is not an integer", i, f)
	}
	return int64(f), nil
}

// Float returns the i-th argument as a float.
func (a Args) Float(i int) (float64, error) {
	v, err := a.at(i)
	if err != nil {
		return 0, err
	}

	switch t := v.(type) {
	case float32:
		return float64(t), nil
	case float64:
		return t, nil
	}

	n, err := a.Int(i)
	if err != nil {
		return 0, mistyped(i, "number", v)
	}
	return float64(n), nil
}

// Bool returns the i-th argument as a bool.
func (a Args) Bool(i int) (bool, error) {
	v, err := a.at(i)
	if err != nil {
		return false, err
	}

	b, ok := v.(bool)
	if !ok {
		return false, mistyped(i, "bool", v)
	}
	return b, nil
}

// List returns the i-th argument as a list. A nil argument is an empty
// list.
func (a Args) List(i int) ([]interface{}, error) {
	v, err := a.at(i)
	if err != nil {
		return nil, err
	}

	switch t := v.(type) {
	case nil:
		return []interface{}{}, nil
	case []interface{}:
		return t, nil
	}
	return nil, mistyped(i, "list", v)
}

// Map returns the i-th argument as a string keyed map.
func (a Args) Map(i int) (map[string]interface{}, error) {
	v, err := a.at(i)
	if err != nil {
		return nil, err
	}

	switch t := v.(type) {
	case map[string]interface{}:
		return t, nil
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, e := range t {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("proxy: argument %d: map key %v is not a string", i, k)
			}
			m[ks] = e
		}
		return m, nil
	}
	return nil, mistyped(i, "map", v)
}

package starlarkrt

import (
	"fmt"
	"slices"

	"go.starlark.net/starlark"
)

// Convert implements ports.Language.
func (r *Runtime) Convert(v any) (any, error) { return ToValue(v) }

// Native implements ports.Language.
func (r *Runtime) Native(v any) any { return ToNative(v) }

// ToValue converts common Go values to Starlark values. Starlark values are
// returned unchanged.
func ToValue(v any) (starlark.Value, error) {
	switch v := v.(type) {
	case nil:
		return starlark.None, nil
	case starlark.Value:
		return v, nil
	case bool:
		return starlark.Bool(v), nil
	case string:
		return starlark.String(v), nil
	case []byte:
		return starlark.Bytes(v), nil
	case int:
		return starlark.MakeInt(v), nil
	case int8:
		return starlark.MakeInt64(int64(v)), nil
	case int16:
		return starlark.MakeInt64(int64(v)), nil
	case int32:
		return starlark.MakeInt64(int64(v)), nil
	case int64:
		return starlark.MakeInt64(v), nil
	case uint:
		return starlark.MakeUint(v), nil
	case uint8:
		return starlark.MakeUint64(uint64(v)), nil
	case uint16:
		return starlark.MakeUint64(uint64(v)), nil
	case uint32:
		return starlark.MakeUint64(uint64(v)), nil
	case uint64:
		return starlark.MakeUint64(v), nil
	case float32:
		return starlark.Float(v), nil
	case float64:
		return starlark.Float(v), nil
	case []string:
		elems := make([]starlark.Value, len(v))
		for i, s := range v {
			elems[i] = starlark.String(s)
		}
		return starlark.NewList(elems), nil
	case []any:
		elems := make([]starlark.Value, len(v))
		for i, e := range v {
			sv, err := ToValue(e)
			if err != nil {
				return nil, err
			}
			elems[i] = sv
		}
		return starlark.NewList(elems), nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		dict := starlark.NewDict(len(v))
		for _, k := range keys {
			sv, err := ToValue(v[k])
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	}
	return nil, fmt.Errorf("cannot convert %T to a starlark value", v)
}

// ToNative converts Starlark values to plain Go values: None to nil, bool,
// int64 (or *big.Int when out of range), float64, string, []byte, []any and
// map[string]any. Values without a Go counterpart, such as functions, are
// returned unchanged, as are non-Starlark values.
func ToNative(v any) any {
	sv, ok := v.(starlark.Value)
	if !ok {
		return v
	}

	switch x := sv.(type) {
	case starlark.NoneType:
		return nil
	case starlark.Bool:
		return bool(x)
	case starlark.Int:
		if i, ok := x.Int64(); ok {
			return i
		}
		return x.BigInt()
	case starlark.Float:
		return float64(x)
	case starlark.String:
		return string(x)
	case starlark.Bytes:
		return []byte(x)
	case *starlark.List:
		out := make([]any, x.Len())
		for i := range out {
			out[i] = ToNative(x.Index(i))
		}
		return out
	case starlark.Tuple:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = ToNative(e)
		}
		return out
	case *starlark.Dict:
		out := make(map[string]any, x.Len())
		for _, item := range x.Items() {
			key, ok := starlark.AsString(item[0])
			if !ok {
				key = item[0].String()
			}
			out[key] = ToNative(item[1])
		}
		return out
	}
	return sv
}

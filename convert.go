package ignite

import (
	"math"
	"reflect"
)

// convertTo turns a value returned by an engine into T. Payloads are decoded into T directly,
// Go values must either be a T or a numeric, string or bool value convertible to T without loss.
func convertTo[T any](v any) (T, error) {
	var res T
	switch val := v.(type) {
	case nil:
		return res, nil
	case T:
		return val, nil
	case Payload:
		if err := val.DecodeInto(&res); err != nil {
			return res, Errorf(TypeMismatch, "failed to decode value into %T: %s", res, err).WithCause(err)
		}
		return res, nil
	}
	dst := reflect.ValueOf(&res).Elem()
	if !convertValue(reflect.ValueOf(v), dst) {
		return res, Errorf(TypeMismatch, "cannot convert %T to %s", v, dst.Type())
	}
	return res, nil
}

func convertValue(src reflect.Value, dst reflect.Value) bool {
	switch {
	case isInt(dst.Kind()):
		switch {
		case isInt(src.Kind()):
			if dst.OverflowInt(src.Int()) {
				return false
			}
			dst.SetInt(src.Int())
			return true
		case isUint(src.Kind()):
			if src.Uint() > math.MaxInt64 || dst.OverflowInt(int64(src.Uint())) {
				return false
			}
			dst.SetInt(int64(src.Uint()))
			return true
		}
	case isUint(dst.Kind()):
		switch {
		case isInt(src.Kind()):
			if src.Int() < 0 || dst.OverflowUint(uint64(src.Int())) {
				return false
			}
			dst.SetUint(uint64(src.Int()))
			return true
		case isUint(src.Kind()):
			if dst.OverflowUint(src.Uint()) {
				return false
			}
			dst.SetUint(src.Uint())
			return true
		}
	case isFloat(dst.Kind()):
		switch {
		case isInt(src.Kind()):
			f := toFloatKind(float64(src.Int()), dst.Kind())
			if f < -twoTo63 || f >= twoTo63 || int64(f) != src.Int() {
				return false
			}
			dst.SetFloat(f)
			return true
		case isUint(src.Kind()):
			f := toFloatKind(float64(src.Uint()), dst.Kind())
			if f >= twoTo64 || uint64(f) != src.Uint() {
				return false
			}
			dst.SetFloat(f)
			return true
		case isFloat(src.Kind()):
			v := src.Float()
			f := toFloatKind(v, dst.Kind())
			if f != v && !math.IsNaN(v) {
				return false
			}
			dst.SetFloat(f)
			return true
		}
	case dst.Kind() == reflect.String && src.Kind() == reflect.String:
		dst.SetString(src.String())
		return true
	case dst.Kind() == reflect.Bool && src.Kind() == reflect.Bool:
		dst.SetBool(src.Bool())
		return true
	case dst.Kind() == reflect.Interface && src.Type().Implements(dst.Type()):
		dst.Set(src)
		return true
	}
	return false
}

const (
	twoTo63 = 1 << 63
	twoTo64 = 1 << 64
)

// toFloatKind rounds v to the precision of the float kind k.
func toFloatKind(v float64, k reflect.Kind) float64 {
	if k == reflect.Float32 {
		return float64(float32(v))
	}
	return v
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

package ignite

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

type jsonPayload []byte

func (p jsonPayload) DecodeInto(dst any) error {
	return json.Unmarshal(p, dst)
}

type point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type label string

func TestConvertTo_Direct(t *testing.T) {
	v, err := convertTo[int](nil)
	require.NoError(t, err)
	require.Zero(t, v)

	s, err := convertTo[string]("a")
	require.NoError(t, err)
	require.Equal(t, "a", s)

	l, err := convertTo[label]("b")
	require.NoError(t, err)
	require.Equal(t, label("b"), l)

	a, err := convertTo[any](int8(1))
	require.NoError(t, err)
	require.Equal(t, int8(1), a)

	b, err := convertTo[bool](true)
	require.NoError(t, err)
	require.True(t, b)
}

func TestConvertTo_Numeric(t *testing.T) {
	i, err := convertTo[int](int32(-5))
	require.NoError(t, err)
	require.Equal(t, -5, i)

	u, err := convertTo[uint16](int64(65535))
	require.NoError(t, err)
	require.Equal(t, uint16(65535), u)

	f, err := convertTo[float64](int16(3))
	require.NoError(t, err)
	require.Equal(t, 3.0, f)

	f32, err := convertTo[float32](2.5)
	require.NoError(t, err)
	require.Equal(t, float32(2.5), f32)

	_, err = convertTo[int8](int64(128))
	require.Equal(t, TypeMismatch, CodeOf(err))
	_, err = convertTo[uint](int32(-1))
	require.Equal(t, TypeMismatch, CodeOf(err))
	_, err = convertTo[int64](uint64(math.MaxUint64))
	require.Equal(t, TypeMismatch, CodeOf(err))
	_, err = convertTo[int](1.5)
	require.Equal(t, TypeMismatch, CodeOf(err))
}

func TestConvertTo_Payload(t *testing.T) {
	p, err := convertTo[point](jsonPayload(`{"x":1,"y":2}`))
	require.NoError(t, err)
	require.Equal(t, point{1, 2}, p)

	_, err = convertTo[point](jsonPayload(`"not a point"`))
	require.Equal(t, TypeMismatch, CodeOf(err))
}

func TestConvertTo_Mismatch(t *testing.T) {
	_, err := convertTo[string](42)
	require.ErrorIs(t, err, ErrTypeMismatch)
	_, err = convertTo[point]("x")
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestConvertTo_FloatPrecision(t *testing.T) {
	_, err := convertTo[float32](math.MaxFloat64)
	require.Equal(t, TypeMismatch, CodeOf(err))
	_, err = convertTo[float32](0.1)
	require.Equal(t, TypeMismatch, CodeOf(err))
	_, err = convertTo[float64](int64(1<<53 + 1))
	require.Equal(t, TypeMismatch, CodeOf(err))
	_, err = convertTo[float64](int64(math.MaxInt64))
	require.Equal(t, TypeMismatch, CodeOf(err))
	_, err = convertTo[float64](uint64(math.MaxUint64))
	require.Equal(t, TypeMismatch, CodeOf(err))
	_, err = convertTo[float32](int32(1<<24 + 1))
	require.Equal(t, TypeMismatch, CodeOf(err))

	f, err := convertTo[float64](int64(1 << 53))
	require.NoError(t, err)
	require.Equal(t, float64(1<<53), f)
	f, err = convertTo[float64](int64(math.MinInt64))
	require.NoError(t, err)
	require.Equal(t, float64(math.MinInt64), f)
	f32, err := convertTo[float32](float64(float32(0.1)))
	require.NoError(t, err)
	require.Equal(t, float32(0.1), f32)
	f32, err = convertTo[float32](math.Inf(-1))
	require.NoError(t, err)
	require.True(t, math.IsInf(float64(f32), -1))
	f, err = convertTo[float64](float32(math.NaN()))
	require.NoError(t, err)
	require.True(t, math.IsNaN(f))
}

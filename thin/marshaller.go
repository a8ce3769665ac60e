package thin

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/google/uuid"
)

// ErrUnsupportedType is returned when a value has no Ignite binary representation.
var ErrUnsupportedType = errors.New("unsupported type")

func marshal(writer BinaryOutputStream, payload interface{}) error {
	if payload == nil {
		writer.WriteNull()
		return nil
	}

	switch val := payload.(type) {
	case bool:
		writer.WriteInt8(BoolType)
		writer.WriteBool(val)
	case uint8:
		writer.WriteInt8(ByteType)
		writer.WriteUInt8(val)
	case int8:
		writer.WriteInt8(ByteType)
		writer.WriteInt8(val)
	case uint16:
		writer.WriteInt8(CharType)
		writer.WriteUInt16(val)
	case int16:
		writer.WriteInt8(ShortType)
		writer.WriteInt16(val)
	case uint32:
		writer.WriteInt8(IntType)
		writer.WriteUInt32(val)
	case int32:
		writer.WriteInt8(IntType)
		writer.WriteInt32(val)
	case uint:
		writer.WriteInt8(LongType)
		writer.WriteUInt64(uint64(val))
	case int:
		writer.WriteInt8(LongType)
		writer.WriteInt64(int64(val))
	case uint64:
		writer.WriteInt8(LongType)
		writer.WriteUInt64(val)
	case int64:
		writer.WriteInt8(LongType)
		writer.WriteInt64(val)
	case float32:
		writer.WriteInt8(FloatType)
		writer.WriteFloat32(val)
	case float64:
		writer.WriteInt8(DoubleType)
		writer.WriteFloat64(val)
	case string:
		marshalString(writer, val)
	case []byte:
		marshalByteArray(writer, val)
	case uuid.UUID:
		marshalUuid(writer, &val)
	case *uuid.UUID:
		marshalUuid(writer, val)
	case time.Time:
		writer.WriteInt8(TimestampType)
		writeTimestamp(writer, val)
	case Date:
		writer.WriteInt8(DateType)
		writer.WriteInt64(int64(val))
	case Time:
		writer.WriteInt8(TimeType)
		writer.WriteInt64(int64(val))
	case apd.Decimal:
		writer.WriteInt8(DecimalType)
		writeDecimal(writer, &val)
	case *apd.Decimal:
		if val == nil {
			writer.WriteNull()
			return nil
		}
		writer.WriteInt8(DecimalType)
		writeDecimal(writer, val)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedType, payload)
	}
	return nil
}

// fixedSize decodes the values that have a fixed size after their type code.
var fixedSize = map[TypeDesc]struct {
	size int
	read func(BinaryInputStream) interface{}
}{
	BoolType:   {boolBytes, func(r BinaryInputStream) interface{} { return r.ReadBool() }},
	ByteType:   {byteBytes, func(r BinaryInputStream) interface{} { return r.ReadInt8() }},
	ShortType:  {shortBytes, func(r BinaryInputStream) interface{} { return r.ReadInt16() }},
	CharType:   {charBytes, func(r BinaryInputStream) interface{} { return r.ReadUInt16() }},
	IntType:    {intBytes, func(r BinaryInputStream) interface{} { return r.ReadInt32() }},
	LongType:   {longBytes, func(r BinaryInputStream) interface{} { return r.ReadInt64() }},
	FloatType:  {intBytes, func(r BinaryInputStream) interface{} { return r.ReadFloat32() }},
	DoubleType: {longBytes, func(r BinaryInputStream) interface{} { return r.ReadFloat64() }},
	DateType:   {longBytes, func(r BinaryInputStream) interface{} { return Date(r.ReadInt64()) }},
	TimeType:   {longBytes, func(r BinaryInputStream) interface{} { return Time(r.ReadInt64()) }},
}

// unmarshal reads the next value. Unsigned Go values come back as the signed type of the same
// width, except uint16 which Ignite keeps as a char.
func unmarshal(reader BinaryInputStream) (interface{}, error) {
	if err := ensureAvailable(reader, byteBytes); err != nil {
		return nil, err
	}
	payloadType := reader.ReadInt8()
	if fixed, ok := fixedSize[payloadType]; ok {
		if err := ensureAvailable(reader, fixed.size); err != nil {
			return nil, err
		}
		return fixed.read(reader), nil
	}
	switch payloadType {
	case NullType:
		return nil, nil
	case StringType:
		return readString(reader)
	case ByteArrayType:
		return readByteArray(reader)
	case UuidType:
		return readUuid(reader)
	case TimestampType:
		return readTimestamp(reader)
	case DecimalType:
		return readDecimal(reader)
	default:
		return nil, fmt.Errorf("%w: type code %d", ErrUnsupportedType, payloadType)
	}
}

func marshalString(writer BinaryOutputStream, val string) {
	writer.WriteInt8(StringType)
	writeString(writer, val)
}

func writeString(writer BinaryOutputStream, val string) {
	writer.WriteInt32(int32(len(val)))
	writer.WriteBytes([]byte(val))
}

func marshalByteArray(writer BinaryOutputStream, val []byte) {
	if val == nil {
		writer.WriteNull()
		return
	}
	writer.WriteInt8(ByteArrayType)
	writer.WriteInt32(int32(len(val)))
	writer.WriteBytes(val)
}

func marshalUuid(writer BinaryOutputStream, val *uuid.UUID) {
	if val == nil {
		writer.WriteNull()
		return
	}
	writer.WriteInt8(UuidType)
	writer.WriteUInt64(binary.BigEndian.Uint64(val[:8]))
	writer.WriteUInt64(binary.BigEndian.Uint64(val[8:]))
}

func writeTimestamp(writer BinaryOutputStream, val time.Time) {
	millis := val.Unix() * 1000
	nanos := val.Nanosecond()
	millis += int64(nanos / int(time.Millisecond))
	nanos %= int(time.Millisecond)
	writer.WriteInt64(millis)
	writer.WriteInt32(int32(nanos))
}

// writeDecimal writes the scale followed by the big-endian magnitude with the sign in the
// highest bit of the first byte.
func writeDecimal(writer BinaryOutputStream, val *apd.Decimal) {
	writer.WriteInt32(-val.Exponent)
	coeff := val.Coeff.Bytes()
	if len(coeff) == 0 || coeff[0] > 0x7F {
		tmp := make([]byte, len(coeff)+1)
		copy(tmp[1:], coeff)
		coeff = tmp
	}
	if val.Negative {
		coeff[0] |= 0x80
	}
	writer.WriteInt32(int32(len(coeff)))
	writer.WriteBytes(coeff)
}

func checkNotNull(reader BinaryInputStream, expected TypeDesc) (bool, error) {
	if err := ensureAvailable(reader, byteBytes); err != nil {
		return false, err
	}
	switch t := reader.ReadInt8(); t {
	case NullType:
		return false, nil
	case expected:
		return true, nil
	default:
		return false, fmt.Errorf("unexpected type %d in stream, expected %d", t, expected)
	}
}

func readByteArray(reader BinaryInputStream) ([]byte, error) {
	if err := ensureAvailable(reader, intBytes); err != nil {
		return nil, err
	}
	bytesSz := int(reader.ReadInt32())
	if err := ensureAvailable(reader, bytesSz); err != nil {
		return nil, err
	}
	return reader.ReadBytes(bytesSz), nil
}

func unmarshalByteArray(reader BinaryInputStream) ([]byte, error) {
	isNotNull, err := checkNotNull(reader, ByteArrayType)
	if err != nil || !isNotNull {
		return nil, err
	}
	return readByteArray(reader)
}

func readString(reader BinaryInputStream) (string, error) {
	if err := ensureAvailable(reader, intBytes); err != nil {
		return "", err
	}
	strSz := int(reader.ReadInt32())
	if err := ensureAvailable(reader, strSz); err != nil {
		return "", err
	}
	return string(reader.ReadBytes(strSz)), nil
}

func unmarshalString(reader BinaryInputStream) (string, error) {
	isNotNull, err := checkNotNull(reader, StringType)
	if err != nil || !isNotNull {
		return "", err
	}
	return readString(reader)
}

func readUuid(reader BinaryInputStream) (uuid.UUID, error) {
	if err := ensureAvailable(reader, 2*longBytes); err != nil {
		return uuid.Nil, err
	}
	ret := uuid.UUID{}
	binary.BigEndian.PutUint64(ret[:8], reader.ReadUInt64())
	binary.BigEndian.PutUint64(ret[8:], reader.ReadUInt64())
	return ret, nil
}

func unmarshalUuid(reader BinaryInputStream) (uuid.UUID, error) {
	isNotNull, err := checkNotNull(reader, UuidType)
	if err != nil || !isNotNull {
		return uuid.Nil, err
	}
	return readUuid(reader)
}

func readTimestamp(reader BinaryInputStream) (time.Time, error) {
	if err := ensureAvailable(reader, intBytes+longBytes); err != nil {
		return time.Time{}, err
	}
	millis := reader.ReadInt64()
	nanos := int64(reader.ReadInt32()) + (millis%1000)*int64(time.Millisecond)
	return time.Unix(millis/1000, nanos), nil
}

func readDecimal(reader BinaryInputStream) (*apd.Decimal, error) {
	if err := ensureAvailable(reader, 2*intBytes); err != nil {
		return nil, err
	}
	exp := -reader.ReadInt32()
	coefSz := int(reader.ReadInt32())
	if coefSz == 0 {
		return nil, errors.New("invalid coef value: empty")
	}
	if err := ensureAvailable(reader, coefSz); err != nil {
		return nil, err
	}
	coefData := reader.ReadBytes(coefSz)
	negative := coefData[0]&0x80 == 0x80
	if negative {
		coefData[0] &= 0x7F
	}
	coef := new(apd.BigInt)
	coef.SetBytes(coefData)
	if negative {
		coef.Neg(coef)
	}
	return apd.NewWithBigInt(coef, exp), nil
}

func ensureAvailable(reader BinaryInputStream, nBytes int) error {
	if nBytes < 0 || reader.Available() < nBytes {
		return fmt.Errorf("invalid binary stream: %d bytes required, %d available", nBytes, reader.Available())
	}
	return nil
}

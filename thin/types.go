package thin

import (
	"time"
)

// TypeDesc is an Ignite binary type code.
type TypeDesc = int8

const (
	ByteType      TypeDesc = 1
	ShortType     TypeDesc = 2
	IntType       TypeDesc = 3
	LongType      TypeDesc = 4
	FloatType     TypeDesc = 5
	DoubleType    TypeDesc = 6
	CharType      TypeDesc = 7
	BoolType      TypeDesc = 8
	StringType    TypeDesc = 9
	UuidType      TypeDesc = 10
	DateType      TypeDesc = 11
	ByteArrayType TypeDesc = 12
	MapType       TypeDesc = 25
	DecimalType   TypeDesc = 30
	TimestampType TypeDesc = 33
	TimeType      TypeDesc = 36
	NullType      TypeDesc = 101
	hashMapKind   int8     = 1
)

// Time is a time of day in milliseconds, stored by Ignite as java.sql.Time.
type Time int64

// Date is a point in time with millisecond precision, stored by Ignite as java.util.Date.
type Date int64

func NewTime(val time.Time) Time {
	return Time(toMillis(val))
}

func (t Time) Time() time.Time {
	return fromMillis(int64(t))
}

func (t Time) String() string {
	return t.Time().UTC().Format("15:04:05.000")
}

func NewDate(val time.Time) Date {
	return Date(toMillis(val))
}

func (d Date) Time() time.Time {
	return fromMillis(int64(d))
}

func (d Date) String() string {
	return d.Time().UTC().String()
}

func toMillis(val time.Time) int64 {
	utcVal := val.UTC()
	return utcVal.Unix()*1000 + int64(utcVal.Nanosecond())/int64(time.Millisecond)
}

func fromMillis(millis int64) time.Time {
	return time.Unix(millis/1000, (millis%1000)*int64(time.Millisecond))
}

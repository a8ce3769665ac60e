package thin

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	boolBytes  = 1
	byteBytes  = 1
	shortBytes = 2
	charBytes  = 2
	intBytes   = 4
	longBytes  = 8
)

// BinaryOutputStream is a growable little-endian writer used to build protocol messages.
type BinaryOutputStream interface {
	Data() []byte
	Position() int
	Available() int
	SetPosition(pos int)
	WriteNull()
	WriteBool(v bool)
	WriteUInt8(v uint8)
	WriteInt8(v int8)
	WriteUInt16(v uint16)
	WriteInt16(v int16)
	WriteUInt32(v uint32)
	WriteInt32(v int32)
	WriteUInt64(v uint64)
	WriteInt64(v int64)
	WriteFloat32(v float32)
	WriteFloat64(v float64)
	WriteBytes(v []byte)
}

// BinaryInputStream is a little-endian reader over a protocol message. Reads past the end
// panic, callers check Available first.
type BinaryInputStream interface {
	Position() int
	Available() int
	SetPosition(pos int)
	ReadBool() bool
	ReadUInt8() uint8
	ReadInt8() int8
	ReadUInt16() uint16
	ReadInt16() int16
	ReadUInt32() uint32
	ReadInt32() int32
	ReadUInt64() uint64
	ReadInt64() int64
	ReadFloat32() float32
	ReadFloat64() float64
	ReadBytes(size int) []byte
	IsNull() bool
}

type binaryOutputStreamImpl struct {
	buffer   []byte
	position int
}

type binaryInputStreamImpl struct {
	buffer   []byte
	position int
}

func NewBinaryOutputStream(length int) BinaryOutputStream {
	return &binaryOutputStreamImpl{
		buffer: make([]byte, length),
	}
}

func NewBinaryInputStream(buffer []byte, offset int) BinaryInputStream {
	return &binaryInputStreamImpl{
		buffer:   buffer,
		position: offset,
	}
}

func (bw *binaryOutputStreamImpl) Data() []byte {
	return bw.buffer[:bw.position]
}

func (bw *binaryOutputStreamImpl) Available() int {
	return len(bw.buffer) - bw.position
}

func (bw *binaryOutputStreamImpl) Position() int {
	return bw.position
}

func (bw *binaryOutputStreamImpl) SetPosition(pos int) {
	bw.position = pos
}

func (bw *binaryOutputStreamImpl) ensureAvailable(size int) {
	if math.MaxInt32-bw.position < size {
		panic(fmt.Sprintf("buffer length overflow: position=%d, required size=%d", bw.position, size))
	}
	if bw.Available() < size {
		newLen := 2 * len(bw.buffer)
		if newLen < bw.position+size {
			newLen = bw.position + size
		}
		temp := make([]byte, newLen)
		copy(temp, bw.buffer)
		bw.buffer = temp
	}
}

func (bw *binaryOutputStreamImpl) WriteNull() {
	bw.WriteInt8(NullType)
}

func (bw *binaryOutputStreamImpl) WriteBool(v bool) {
	if v {
		bw.WriteUInt8(1)
	} else {
		bw.WriteUInt8(0)
	}
}

func (bw *binaryOutputStreamImpl) WriteUInt8(v uint8) {
	bw.ensureAvailable(byteBytes)
	bw.buffer[bw.position] = v
	bw.position += byteBytes
}

func (bw *binaryOutputStreamImpl) WriteInt8(v int8) {
	bw.WriteUInt8(uint8(v))
}

func (bw *binaryOutputStreamImpl) WriteUInt16(v uint16) {
	bw.ensureAvailable(shortBytes)
	binary.LittleEndian.PutUint16(bw.buffer[bw.position:], v)
	bw.position += shortBytes
}

func (bw *binaryOutputStreamImpl) WriteInt16(v int16) {
	bw.WriteUInt16(uint16(v))
}

func (bw *binaryOutputStreamImpl) WriteUInt32(v uint32) {
	bw.ensureAvailable(intBytes)
	binary.LittleEndian.PutUint32(bw.buffer[bw.position:], v)
	bw.position += intBytes
}

func (bw *binaryOutputStreamImpl) WriteInt32(v int32) {
	bw.WriteUInt32(uint32(v))
}

func (bw *binaryOutputStreamImpl) WriteUInt64(v uint64) {
	bw.ensureAvailable(longBytes)
	binary.LittleEndian.PutUint64(bw.buffer[bw.position:], v)
	bw.position += longBytes
}

func (bw *binaryOutputStreamImpl) WriteInt64(v int64) {
	bw.WriteUInt64(uint64(v))
}

func (bw *binaryOutputStreamImpl) WriteFloat32(v float32) {
	bw.WriteUInt32(math.Float32bits(v))
}

func (bw *binaryOutputStreamImpl) WriteFloat64(v float64) {
	bw.WriteUInt64(math.Float64bits(v))
}

func (bw *binaryOutputStreamImpl) WriteBytes(v []byte) {
	length := len(v)
	bw.ensureAvailable(length)
	copy(bw.buffer[bw.position:], v)
	bw.position += length
}

func (br *binaryInputStreamImpl) Available() int {
	return len(br.buffer) - br.position
}

func (br *binaryInputStreamImpl) Position() int {
	return br.position
}

func (br *binaryInputStreamImpl) SetPosition(pos int) {
	if pos < 0 {
		panic(fmt.Sprintf("negative position passed: %d", pos))
	}
	if len(br.buffer) < pos {
		panic(fmt.Sprintf("position %d is out of range, buffer length: %d", pos, len(br.buffer)))
	}
	br.position = pos
}

func (br *binaryInputStreamImpl) ReadBool() bool {
	return br.ReadUInt8() == 1
}

func (br *binaryInputStreamImpl) ReadUInt8() uint8 {
	ret := br.buffer[br.position]
	br.position += byteBytes
	return ret
}

func (br *binaryInputStreamImpl) ReadInt8() int8 {
	return int8(br.ReadUInt8())
}

func (br *binaryInputStreamImpl) ReadUInt16() uint16 {
	r := binary.LittleEndian.Uint16(br.buffer[br.position:])
	br.position += shortBytes
	return r
}

func (br *binaryInputStreamImpl) ReadInt16() int16 {
	return int16(br.ReadUInt16())
}

func (br *binaryInputStreamImpl) ReadUInt32() uint32 {
	r := binary.LittleEndian.Uint32(br.buffer[br.position:])
	br.position += intBytes
	return r
}

func (br *binaryInputStreamImpl) ReadInt32() int32 {
	return int32(br.ReadUInt32())
}

func (br *binaryInputStreamImpl) ReadUInt64() uint64 {
	r := binary.LittleEndian.Uint64(br.buffer[br.position:])
	br.position += longBytes
	return r
}

func (br *binaryInputStreamImpl) ReadInt64() int64 {
	return int64(br.ReadUInt64())
}

func (br *binaryInputStreamImpl) ReadFloat32() float32 {
	return math.Float32frombits(br.ReadUInt32())
}

func (br *binaryInputStreamImpl) ReadFloat64() float64 {
	return math.Float64frombits(br.ReadUInt64())
}

func (br *binaryInputStreamImpl) ReadBytes(size int) []byte {
	ret := make([]byte, size)
	br.position += copy(ret, br.buffer[br.position:br.position+size])
	return ret
}

// IsNull consumes the next byte if it is the null type marker.
func (br *binaryInputStreamImpl) IsNull() bool {
	if br.buffer[br.position] == byte(NullType) {
		br.position += byteBytes
		return true
	}
	return false
}

func readSlice[T any](reader BinaryInputStream, elemReader func(int, BinaryInputStream) (T, error)) ([]T, error) {
	if err := ensureAvailable(reader, intBytes); err != nil {
		return nil, err
	}
	sz := int(reader.ReadInt32())
	if sz < 0 {
		return nil, fmt.Errorf("negative sequence length %d", sz)
	}
	ret := make([]T, 0, sz)
	for i := 0; i < sz; i++ {
		el, err := elemReader(i, reader)
		if err != nil {
			return nil, err
		}
		ret = append(ret, el)
	}
	return ret, nil
}

func writeSequence(writer BinaryOutputStream, length int, valueWriter func(output BinaryOutputStream, idx int) error) error {
	writer.WriteInt32(int32(length))
	for i := 0; i < length; i++ {
		if err := valueWriter(writer, i); err != nil {
			return err
		}
	}
	return nil
}

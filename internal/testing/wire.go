package testing

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var errShortBuffer = errors.New("short buffer")

// wireReader reads little endian values, the first failure sticks.
type wireReader struct {
	buf []byte
	pos int
	err error
}

func (r *wireReader) remaining() int {
	return len(r.buf) - r.pos
}

func (r *wireReader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.remaining() < n {
		r.err = errShortBuffer
		return nil
	}
	res := r.buf[r.pos : r.pos+n]
	r.pos += n
	return res
}

func (r *wireReader) int8() int8 {
	b := r.bytes(1)
	if b == nil {
		return 0
	}
	return int8(b[0])
}

func (r *wireReader) uint8() uint8 {
	return uint8(r.int8())
}

func (r *wireReader) bool() bool {
	return r.int8() != 0
}

func (r *wireReader) int16() int16 {
	b := r.bytes(2)
	if b == nil {
		return 0
	}
	return int16(binary.LittleEndian.Uint16(b))
}

func (r *wireReader) int32() int32 {
	b := r.bytes(4)
	if b == nil {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(b))
}

func (r *wireReader) int64() int64 {
	b := r.bytes(8)
	if b == nil {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(b))
}

// string reads a string object, false if it is null.
func (r *wireReader) string() (string, bool) {
	switch t := r.int8(); t {
	case typeNull:
		return "", false
	case typeString:
		return string(r.bytes(int(r.int32()))), true
	default:
		if r.err == nil {
			r.err = fmt.Errorf("expected string, got type %d", t)
		}
		return "", false
	}
}

func (r *wireReader) attributes() map[string]string {
	t := r.int8()
	if t != typeMap {
		return nil
	}
	n := int(r.int32())
	r.int8() // map kind
	attrs := make(map[string]string, n)
	for i := 0; i < n && r.err == nil; i++ {
		k, _ := r.string()
		v, _ := r.string()
		attrs[k] = v
	}
	return attrs
}

// value returns the raw bytes of the next serialized object, type code included.
func (r *wireReader) value() []byte {
	if r.err != nil {
		return nil
	}
	start := r.pos
	t := r.int8()
	var n int
	switch t {
	case typeNull:
	case 1, 8:
		n = 1
	case 2, 7:
		n = 2
	case 3, 5:
		n = 4
	case 4, 6, 11, 36:
		n = 8
	case typeUuid:
		n = 16
	case 33:
		n = 12
	case typeString, typeByteArray:
		n = int(r.int32())
	case 30:
		r.int32() // scale
		n = int(r.int32())
	default:
		r.err = fmt.Errorf("unsupported type code %d", t)
		return nil
	}
	r.bytes(n)
	if r.err != nil {
		return nil
	}
	return r.buf[start:r.pos]
}

type wireWriter struct {
	buf bytes.Buffer
}

func (w *wireWriter) raw(b []byte) {
	w.buf.Write(b)
}

func (w *wireWriter) int8(v int8) {
	w.buf.WriteByte(byte(v))
}

func (w *wireWriter) bool(v bool) {
	if v {
		w.int8(1)
	} else {
		w.int8(0)
	}
}

func (w *wireWriter) int16(v int16) {
	_ = binary.Write(&w.buf, binary.LittleEndian, v)
}

func (w *wireWriter) int32(v int32) {
	_ = binary.Write(&w.buf, binary.LittleEndian, v)
}

func (w *wireWriter) int64(v int64) {
	_ = binary.Write(&w.buf, binary.LittleEndian, v)
}

func (w *wireWriter) string(s string) {
	w.int8(typeString)
	w.int32(int32(len(s)))
	w.buf.WriteString(s)
}

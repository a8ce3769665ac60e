// Package bitset implements the little-endian feature bitmask exchanged during the thin client
// handshake. Byte layout matches java.util.BitSet#toByteArray padded to whole words.
package bitset

import "encoding/binary"

const (
	wordShift = 6
	wordMask  = 1<<wordShift - 1
	wordBytes = 8
)

type BitSet struct {
	words []uint64
}

func New() *BitSet {
	return &BitSet{}
}

// FromBytes decodes a bitmask, missing trailing bytes are treated as zero.
func FromBytes(data []byte) *BitSet {
	n := (len(data) + wordBytes - 1) / wordBytes
	bs := &BitSet{words: make([]uint64, n)}
	var word [wordBytes]byte
	for i := 0; i < n; i++ {
		clear(word[:])
		copy(word[:], data[i*wordBytes:])
		bs.words[i] = binary.LittleEndian.Uint64(word[:])
	}
	bs.trim()
	return bs
}

func (bs *BitSet) Test(idx uint) bool {
	w := int(idx >> wordShift)
	if w >= len(bs.words) {
		return false
	}
	return bs.words[w]&(1<<(idx&wordMask)) != 0
}

func (bs *BitSet) Set(idx uint) {
	w := int(idx >> wordShift)
	if w >= len(bs.words) {
		grown := make([]uint64, w+1)
		copy(grown, bs.words)
		bs.words = grown
	}
	bs.words[w] |= 1 << (idx & wordMask)
}

func (bs *BitSet) Clear(idx uint) {
	w := int(idx >> wordShift)
	if w >= len(bs.words) {
		return
	}
	bs.words[w] &^= 1 << (idx & wordMask)
	bs.trim()
}

func (bs *BitSet) Equals(other *BitSet) bool {
	if len(bs.words) != len(other.words) {
		return false
	}
	for i, w := range bs.words {
		if other.words[i] != w {
			return false
		}
	}
	return true
}

// Bytes encodes the bitmask in whole little-endian words, empty when no bit is set.
func (bs *BitSet) Bytes() []byte {
	res := make([]byte, wordBytes*len(bs.words))
	for i, w := range bs.words {
		binary.LittleEndian.PutUint64(res[wordBytes*i:], w)
	}
	return res
}

func (bs *BitSet) trim() {
	n := len(bs.words)
	for n > 0 && bs.words[n-1] == 0 {
		n--
	}
	bs.words = bs.words[:n]
}

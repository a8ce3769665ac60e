package local

import (
	"bytes"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// Codec serializes keys and values. Encoding must be deterministic: keys are compared by
// their encoded form and conditional operations compare encoded values.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, dst any) error
}

type msgpackCodec struct{}

// Msgpack returns the default codec. Entries of every map are ordered by their encoded key and
// integers are encoded compactly, so equal numbers of different Go integer types share one
// encoding.
func Msgpack() Codec {
	return msgpackCodec{}
}

func (msgpackCodec) Name() string {
	return "msgpack"
}

func (msgpackCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)
	enc.Reset(&buf)
	enc.UseCompactInts(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	dec := msgpack.GetDecoder()
	defer msgpack.PutDecoder(dec)
	dec.Reset(bytes.NewReader(buf.Bytes()))
	return canonicalMsgpack(dec)
}

// canonicalMsgpack copies the next encoded value with map entries sorted by their encoded keys.
// The encoder only sorts a few map types by itself.
func canonicalMsgpack(dec *msgpack.Decoder) ([]byte, error) {
	c, err := dec.PeekCode()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	switch {
	case msgpcode.IsFixedMap(c) || c == msgpcode.Map16 || c == msgpcode.Map32:
		n, err := dec.DecodeMapLen()
		if err != nil {
			return nil, err
		}
		entries := make([][2][]byte, n)
		for i := range entries {
			if entries[i][0], err = canonicalMsgpack(dec); err != nil {
				return nil, err
			}
			if entries[i][1], err = canonicalMsgpack(dec); err != nil {
				return nil, err
			}
		}
		sort.Slice(entries, func(i, j int) bool {
			return bytes.Compare(entries[i][0], entries[j][0]) < 0
		})
		if err = msgpack.NewEncoder(&buf).EncodeMapLen(n); err != nil {
			return nil, err
		}
		for _, e := range entries {
			buf.Write(e[0])
			buf.Write(e[1])
		}
	case msgpcode.IsFixedArray(c) || c == msgpcode.Array16 || c == msgpcode.Array32:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return nil, err
		}
		if err = msgpack.NewEncoder(&buf).EncodeArrayLen(n); err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			elem, err := canonicalMsgpack(dec)
			if err != nil {
				return nil, err
			}
			buf.Write(elem)
		}
	default:
		raw, err := dec.DecodeRaw()
		if err != nil {
			return nil, err
		}
		buf.Write(raw)
	}
	return buf.Bytes(), nil
}

func (msgpackCodec) Unmarshal(data []byte, dst any) error {
	dec := msgpack.GetDecoder()
	defer msgpack.PutDecoder(dec)
	dec.Reset(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	return dec.Decode(dst)
}

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// CBOR returns a codec producing RFC 8949 core deterministic CBOR.
func CBOR() (Codec, error) {
	eo := cbor.CoreDetEncOptions()
	eo.Time = cbor.TimeRFC3339Nano
	em, err := eo.EncMode()
	if err != nil {
		return nil, err
	}
	dm, err := (cbor.DecOptions{}).DecMode()
	if err != nil {
		return nil, err
	}
	return cborCodec{enc: em, dec: dm}, nil
}

func (cborCodec) Name() string {
	return "cbor"
}

func (c cborCodec) Marshal(v any) ([]byte, error) {
	return c.enc.Marshal(v)
}

func (c cborCodec) Unmarshal(data []byte, dst any) error {
	return c.dec.Unmarshal(data, dst)
}

// payload is a stored value handed back to the facade, decoded into the caller's type on demand.
type payload struct {
	data  []byte
	codec Codec
}

func (p payload) DecodeInto(dst any) error {
	return p.codec.Unmarshal(p.data, dst)
}

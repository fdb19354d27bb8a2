package vectorindex

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var magic = [4]byte{'R', 'Q', 'I', 'X'}

const formatVersion = 1

// MarshalBinary stores: magic, version(uint32), dim(uint32), n(uint32), then
// for each row in position order: idLen(uint32), id bytes, vec(float32[dim]).
// All integers and floats are little-endian.
func (f *Flat) MarshalBinary() ([]byte, error) {
	size := 16
	for _, id := range f.ids {
		size += 4 + len(id) + 4*f.dim
	}
	out := make([]byte, 0, size)
	out = append(out, magic[:]...)
	out = binary.LittleEndian.AppendUint32(out, formatVersion)
	out = binary.LittleEndian.AppendUint32(out, uint32(f.dim))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(f.vecs)))
	for idx, id := range f.ids {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(id)))
		out = append(out, id...)
		for _, v := range f.vecs[idx] {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
		}
	}
	return out, nil
}

// UnmarshalBinary restores rows written by MarshalBinary. The metric is not
// part of the encoding and is kept from the receiver.
func (f *Flat) UnmarshalBinary(data []byte) error {
	if len(data) < 16 {
		return errors.New("vectorindex: data too short for header")
	}
	if [4]byte(data[0:4]) != magic {
		return errors.New("vectorindex: bad magic")
	}
	off := 4
	getU32 := func() uint32 { v := binary.LittleEndian.Uint32(data[off : off+4]); off += 4; return v }

	if v := getU32(); v != formatVersion {
		return fmt.Errorf("vectorindex: unsupported format version %d", v)
	}
	dim := int(getU32())
	n := int(getU32())
	if n > 0 && dim == 0 {
		return errors.New("vectorindex: rows declared with zero dimension")
	}
	// every row needs at least its length prefix and vector
	if rowMin := 4 + 4*dim; n > 0 && n > (len(data)-off)/rowMin {
		return fmt.Errorf("vectorindex: %d rows declared but only %d bytes remain", n, len(data)-off)
	}

	ids := make([]string, n)
	vecs := make([][]float32, n)
	for idx := 0; idx < n; idx++ {
		if off+4 > len(data) {
			return errors.New("vectorindex: truncated")
		}
		idlen := int(getU32())
		if idlen < 0 || off+idlen > len(data) {
			return errors.New("vectorindex: truncated id")
		}
		ids[idx] = string(data[off : off+idlen])
		off += idlen
		if off+4*dim > len(data) {
			return errors.New("vectorindex: truncated vector")
		}
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(getU32())
		}
		vecs[idx] = vec
	}
	if off != len(data) {
		return fmt.Errorf("vectorindex: %d trailing bytes", len(data)-off)
	}

	f.dim = dim
	return f.Build(ids, vecs)
}

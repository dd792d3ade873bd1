// Package boxio provides the big-endian primitives ISO-BMFF boxes are built
// from, read over random-access byte sources and written to sequential
// sinks.
package boxio

import (
	"encoding/binary"
	"fmt"
	"io"
)

// FourCC is a 4-byte ASCII box type tag, e.g. "ftyp", "moov", "stco".
type FourCC [4]byte

func (f FourCC) String() string { return string(f[:]) }

// NewFourCC builds a FourCC from a string, panicking if it is not exactly
// 4 bytes. Intended for use with string literals ("moov", "stco", ...).
func NewFourCC(s string) FourCC {
	if len(s) != 4 {
		panic(fmt.Sprintf("boxio: invalid fourcc %q", s))
	}
	var f FourCC
	copy(f[:], s)
	return f
}

// ReadU32At reads a big-endian uint32 at the given absolute offset.
func ReadU32At(r io.ReaderAt, off int64) (uint32, error) {
	var buf [4]byte
	if _, err := r.ReadAt(buf[:], off); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// ReadU64At reads a big-endian uint64 at the given absolute offset.
func ReadU64At(r io.ReaderAt, off int64) (uint64, error) {
	var buf [8]byte
	if _, err := r.ReadAt(buf[:], off); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// ReadFourCCAt reads a 4-byte type tag at the given absolute offset.
func ReadFourCCAt(r io.ReaderAt, off int64) (FourCC, error) {
	var f FourCC
	if _, err := r.ReadAt(f[:], off); err != nil {
		return FourCC{}, err
	}
	return f, nil
}

// PutU32 writes a big-endian uint32 into buf[off:off+4].
func PutU32(buf []byte, off int, v uint32) {
	binary.BigEndian.PutUint32(buf[off:off+4], v)
}

// PutU64 writes a big-endian uint64 into buf[off:off+8].
func PutU64(buf []byte, off int, v uint64) {
	binary.BigEndian.PutUint64(buf[off:off+8], v)
}

// U32 reads a big-endian uint32 from buf[off:off+4].
func U32(buf []byte, off int) uint32 {
	return binary.BigEndian.Uint32(buf[off : off+4])
}

// U64 reads a big-endian uint64 from buf[off:off+8].
func U64(buf []byte, off int) uint64 {
	return binary.BigEndian.Uint64(buf[off : off+8])
}

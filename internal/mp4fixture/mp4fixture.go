// Package mp4fixture builds small synthetic ISO-BMFF byte buffers for
// tests, in the spirit of the teacher's inspector_test.go makeAtom helper,
// generalized to build whole boxes (including nested stco/co64 tables)
// instead of bare headers.
package mp4fixture

import (
	"bytes"
	"encoding/binary"
	"io"
)

// Box appends a full box (size32 header + type + payload) to buf.
func Box(buf *bytes.Buffer, typ string, payload []byte) {
	var header [8]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(8+len(payload)))
	copy(header[4:8], typ)
	buf.Write(header[:])
	buf.Write(payload)
}

// FullBoxHeader returns the version(0)+flags(0) 4-byte prefix used by
// "full boxes" like stco/co64.
func FullBoxHeader() []byte { return []byte{0, 0, 0, 0} }

// Stco builds an stco payload (full-box header + entry_count + u32 entries).
func Stco(entries []uint32) []byte {
	buf := make([]byte, 8+4*len(entries))
	copy(buf[0:4], FullBoxHeader())
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(entries)))
	for i, e := range entries {
		binary.BigEndian.PutUint32(buf[8+4*i:12+4*i], e)
	}
	return buf
}

// Co64 builds a co64 payload (full-box header + entry_count + u64 entries).
func Co64(entries []uint64) []byte {
	buf := make([]byte, 8+8*len(entries))
	copy(buf[0:4], FullBoxHeader())
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(entries)))
	for i, e := range entries {
		binary.BigEndian.PutUint64(buf[8+8*i:16+8*i], e)
	}
	return buf
}

// Wrap concatenates one or more already-encoded child boxes, in order, as
// the payload of a container box of the given type, e.g.
// Wrap("stbl", stcoBox) or Wrap("trak", edtsBox, mdiaBox).
func Wrap(typ string, children ...[]byte) []byte {
	var buf bytes.Buffer
	for _, c := range children {
		buf.Write(c)
	}
	var out bytes.Buffer
	Box(&out, typ, buf.Bytes())
	return out.Bytes()
}

// Encode renders typ+payload as one complete box's bytes (header+payload),
// for use as a child passed to Wrap or written directly into a top-level
// buffer.
func Encode(typ string, payload []byte) []byte {
	var buf bytes.Buffer
	Box(&buf, typ, payload)
	return buf.Bytes()
}

// BytesReaderAt adapts a []byte to io.ReaderAt for scanner/moovfix tests.
type BytesReaderAt struct{ Data []byte }

func (b BytesReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b.Data)) {
		return 0, io.EOF
	}
	n := copy(p, b.Data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b BytesReaderAt) Size() int64 { return int64(len(b.Data)) }

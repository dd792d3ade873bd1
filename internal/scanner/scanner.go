// Package scanner walks the top-level box structure of an ISO-BMFF file,
// producing an ordered, non-overlapping cover of BoxRecords. It does not
// descend into containers — that is internal/moovfix's job — because only
// top-level boxes participate in the fast-start layout.
package scanner

import (
	"fmt"
	"io"

	"github.com/NanyangTaiji/mp4faststart/internal/boxio"
	"github.com/NanyangTaiji/mp4faststart/internal/mp4err"
)

// BoxRecord describes one top-level box discovered by Scan.
type BoxRecord struct {
	Type          boxio.FourCC
	HeaderOffset  int64 // absolute offset of the size/type header
	HeaderLen     int64 // 8 or 16
	PayloadOffset int64 // HeaderOffset + HeaderLen
	PayloadLen    int64
}

// TotalLen is the full on-disk length of the box, header included.
func (b BoxRecord) TotalLen() int64 { return b.HeaderLen + b.PayloadLen }

// Scan walks the top-level boxes of a random-access source of length n,
// starting at offset 0. It stops after a size==0 ("extends to EOF") box,
// and otherwise continues until offset n is reached exactly.
func Scan(r io.ReaderAt, n int64) ([]BoxRecord, error) {
	var records []BoxRecord

	offset := int64(0)
	for offset < n {
		if n-offset < 8 {
			return records, fmt.Errorf("scanner: at offset %d: %w", offset, mp4err.ErrTruncatedBox)
		}

		size32, err := boxio.ReadU32At(r, offset)
		if err != nil {
			return records, fmt.Errorf("scanner: reading size at %d: %w", offset, err)
		}
		typ, err := boxio.ReadFourCCAt(r, offset+4)
		if err != nil {
			return records, fmt.Errorf("scanner: reading type at %d: %w", offset, err)
		}

		headerLen := int64(8)
		var totalLen int64

		switch {
		case size32 == 1:
			if n-offset < 16 {
				return records, fmt.Errorf("scanner: extended size at %d: %w", offset, mp4err.ErrTruncatedBox)
			}
			size64, err := boxio.ReadU64At(r, offset+8)
			if err != nil {
				return records, fmt.Errorf("scanner: reading largesize at %d: %w", offset, err)
			}
			headerLen = 16
			totalLen = int64(size64)
			if totalLen < headerLen || offset+totalLen > n {
				return records, fmt.Errorf("scanner: box %q at %d: %w", typ, offset, mp4err.ErrInvalidBoxSize)
			}

		case size32 == 0:
			totalLen = n - offset
			records = append(records, BoxRecord{
				Type:          typ,
				HeaderOffset:  offset,
				HeaderLen:     headerLen,
				PayloadOffset: offset + headerLen,
				PayloadLen:    totalLen - headerLen,
			})
			return records, nil

		default:
			totalLen = int64(size32)
			if totalLen < 8 || offset+totalLen > n {
				return records, fmt.Errorf("scanner: box %q at %d: %w", typ, offset, mp4err.ErrInvalidBoxSize)
			}
		}

		records = append(records, BoxRecord{
			Type:          typ,
			HeaderOffset:  offset,
			HeaderLen:     headerLen,
			PayloadOffset: offset + headerLen,
			PayloadLen:    totalLen - headerLen,
		})

		offset += totalLen
	}

	return records, nil
}

// Find returns the first record of the given type, if any.
func Find(records []BoxRecord, typ string) (BoxRecord, bool) {
	want := boxio.NewFourCC(typ)
	for _, r := range records {
		if r.Type == want {
			return r, true
		}
	}
	return BoxRecord{}, false
}

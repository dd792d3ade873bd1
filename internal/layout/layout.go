// Package layout computes the output arrangement of an MP4's top-level
// boxes: ftyp, then a freshly headered moov, then every other box in
// original scan order (spec.md §4.3).
package layout

import (
	"fmt"

	"github.com/NanyangTaiji/mp4faststart/internal/mp4err"
	"github.com/NanyangTaiji/mp4faststart/internal/scanner"
)

const maxUint32Size = 1<<32 - 1

// Plan is the decided output layout for one input file.
type Plan struct {
	Ftyp *scanner.BoxRecord // nil if the input has no ftyp
	Moov scanner.BoxRecord
	Mdat scanner.BoxRecord

	// Tail holds every top-level box other than ftyp, moov, and mdat, in
	// original scan order (spec.md §3.1).
	Tail []scanner.BoxRecord

	// MdatDelta is new_mdat_header_offset - old_mdat_header_offset,
	// applied uniformly to every stco/co64 entry.
	MdatDelta int64

	// NewMoovHeaderLen is 8 or 16.
	NewMoovHeaderLen int64

	// remaining is mdat + Tail, in original scan order: exactly what the
	// writer streams after ftyp and the rewritten moov.
	remaining []scanner.BoxRecord
}

// NewMoovNeeds64BitHeader reports whether the rewritten moov box needs an
// extended (16-byte) header.
func (p *Plan) NewMoovNeeds64BitHeader() bool { return p.NewMoovHeaderLen == 16 }

// AlreadyFastStart reports whether moov already precedes mdat in the
// input, meaning the writer can take the raw-copy fast path (spec.md §4.4).
func (p *Plan) AlreadyFastStart() bool { return p.Moov.HeaderOffset < p.Mdat.HeaderOffset }

// RemainingInOrder returns every top-level box other than ftyp and moov —
// i.e. mdat interleaved with Tail exactly as they appeared in the input —
// which is what the writer copies verbatim after the rewritten moov.
func (p *Plan) RemainingInOrder() []scanner.BoxRecord { return p.remaining }

// Build decides the output layout for the given scanned top-level boxes.
// It returns mp4err.ErrMissingBox if moov or mdat is absent.
func Build(records []scanner.BoxRecord) (*Plan, error) {
	ftypRec, hasFtyp := scanner.Find(records, "ftyp")
	moovRec, hasMoov := scanner.Find(records, "moov")
	mdatRec, hasMdat := scanner.Find(records, "mdat")

	if !hasMoov {
		return nil, fmt.Errorf("layout: no moov box: %w", mp4err.ErrMissingBox)
	}
	if !hasMdat {
		return nil, fmt.Errorf("layout: no mdat box: %w", mp4err.ErrMissingBox)
	}

	newMoovHeaderLen := int64(8)
	if moovRec.PayloadLen+8 > maxUint32Size {
		newMoovHeaderLen = 16
	}

	// remaining = every record except the chosen ftyp/moov instances,
	// in original scan order. A second ftyp or moov (ambiguous per
	// spec.md §9) is treated as an ordinary tail box and stays here.
	remaining := make([]scanner.BoxRecord, 0, len(records))
	skippedFtyp, skippedMoov := false, false
	for _, r := range records {
		if hasFtyp && !skippedFtyp && r.HeaderOffset == ftypRec.HeaderOffset {
			skippedFtyp = true
			continue
		}
		if !skippedMoov && r.HeaderOffset == moovRec.HeaderOffset {
			skippedMoov = true
			continue
		}
		remaining = append(remaining, r)
	}

	tail := make([]scanner.BoxRecord, 0, len(remaining))
	for _, r := range remaining {
		if r.HeaderOffset == mdatRec.HeaderOffset {
			continue
		}
		tail = append(tail, r)
	}

	lFtyp := int64(0)
	var ftypPtr *scanner.BoxRecord
	if hasFtyp {
		lFtyp = ftypRec.HeaderLen + ftypRec.PayloadLen
		f := ftypRec
		ftypPtr = &f
	}
	lMoovNew := newMoovHeaderLen + moovRec.PayloadLen

	var mdatDelta int64
	running := lFtyp + lMoovNew
	for _, r := range remaining {
		if r.HeaderOffset == mdatRec.HeaderOffset {
			mdatDelta = running - mdatRec.HeaderOffset
		}
		running += r.TotalLen()
	}

	return &Plan{
		Ftyp:             ftypPtr,
		Moov:             moovRec,
		Mdat:             mdatRec,
		Tail:             tail,
		MdatDelta:        mdatDelta,
		NewMoovHeaderLen: newMoovHeaderLen,
		remaining:        remaining,
	}, nil
}

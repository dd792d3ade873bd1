// Package moovfix rewrites every absolute chunk-offset entry inside a moov
// payload by a caller-supplied signed delta, so sample addresses stay
// correct after mdat is relocated.
//
// The container walk is iterative (an explicit stack of position/limit
// frames) rather than recursive, per the design note in spec.md §9: this
// keeps the walk's depth bounded by heap, not call stack, on malformed or
// adversarial input. It replaces the teacher's (billytoe-mp4-optimizer)
// PatchMoov, which scanned the whole moov buffer byte-by-byte for the
// literal bytes "stco"/"co64" — a heuristic that can misfire on sample data
// that happens to contain those four bytes. Real tree descent, as done
// here and in qt-faststart's findChunkOffsetAtoms, cannot.
package moovfix

import (
	"fmt"

	"github.com/NanyangTaiji/mp4faststart/internal/applog"
	"github.com/NanyangTaiji/mp4faststart/internal/boxio"
	"github.com/NanyangTaiji/mp4faststart/internal/mp4err"
)

const maxStcoOffset = 1<<31 - 1 // 2^31 - 1

var containers = map[boxio.FourCC]bool{
	boxio.NewFourCC("moov"): true,
	boxio.NewFourCC("trak"): true,
	boxio.NewFourCC("mdia"): true,
	boxio.NewFourCC("minf"): true,
	boxio.NewFourCC("stbl"): true,
	boxio.NewFourCC("edts"): true,
	boxio.NewFourCC("mvex"): true,
	boxio.NewFourCC("udta"): true,
}

var (
	stcoType = boxio.NewFourCC("stco")
	co64Type = boxio.NewFourCC("co64")
)

type frame struct {
	pos, limit int
}

// Fixup rewrites every stco/co64 entry found anywhere in moov's nested
// container hierarchy by delta. moov is mutated in place. delta == 0 is a
// guaranteed no-op: no byte of moov is touched.
func Fixup(moov []byte, delta int64) error {
	if delta == 0 {
		return nil
	}

	stack := []frame{{0, len(moov)}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		pos, limit := f.pos, f.limit
		for pos < limit {
			if limit-pos < 8 {
				return fmt.Errorf("moovfix: short box header at %d: %w", pos, mp4err.ErrMalformedMoov)
			}

			size32 := boxio.U32(moov, pos)
			var typ boxio.FourCC
			copy(typ[:], moov[pos+4:pos+8])

			headerLen := 8
			var total int

			switch {
			case size32 == 1:
				if limit-pos < 16 {
					return fmt.Errorf("moovfix: short extended header at %d: %w", pos, mp4err.ErrMalformedMoov)
				}
				size64 := boxio.U64(moov, pos+8)
				headerLen = 16
				total = int(size64)
				if total < headerLen || pos+total > limit {
					return fmt.Errorf("moovfix: box %q at %d: %w", typ, pos, mp4err.ErrMalformedMoov)
				}
			case size32 == 0:
				total = limit - pos
			default:
				total = int(size32)
				if total < 8 || pos+total > limit {
					return fmt.Errorf("moovfix: box %q at %d: %w", typ, pos, mp4err.ErrMalformedMoov)
				}
			}

			bodyStart := pos + headerLen
			bodyEnd := pos + total

			applog.Logger().Debug("moovfix: visiting box", "type", typ.String(), "offset", pos, "size", total)

			switch {
			case containers[typ]:
				// Descend now (push child on top), resume siblings after.
				stack = append(stack, frame{pos + total, limit})
				stack = append(stack, frame{bodyStart, bodyEnd})
				pos = limit // exit inner loop; stack drives the rest
			case typ == stcoType:
				if err := patchStco(moov, bodyStart, bodyEnd-bodyStart, delta); err != nil {
					return err
				}
				pos += total
			case typ == co64Type:
				if err := patchCo64(moov, bodyStart, bodyEnd-bodyStart, delta); err != nil {
					return err
				}
				pos += total
			default:
				// Leaf box, including stsc (sample-to-chunk indices, not
				// file offsets — left untouched per spec.md §9) and elst
				// inside edts (media-time edit lists, not file offsets).
				pos += total
			}
		}
	}

	return nil
}

// patchStco rewrites a stco full-box body in place: version/flags(4) +
// entry_count(4) + entry_count * u32 absolute offset.
func patchStco(moov []byte, bodyStart, bodyLen int, delta int64) error {
	if bodyLen < 8 {
		return fmt.Errorf("moovfix: stco body too small: %w", mp4err.ErrMalformedMoov)
	}
	count := boxio.U32(moov, bodyStart+4)
	need := 8 + int(count)*4
	if bodyLen < need {
		return fmt.Errorf("moovfix: stco truncated: %w", mp4err.ErrMalformedMoov)
	}

	for i := 0; i < int(count); i++ {
		off := bodyStart + 8 + i*4
		entry := boxio.U32(moov, off)
		newVal := int64(entry) + delta
		if newVal < 0 || newVal > maxStcoOffset {
			return fmt.Errorf("moovfix: stco entry %d (%d -> %d): %w", i, entry, newVal, mp4err.ErrOffsetOverflow)
		}
		boxio.PutU32(moov, off, uint32(newVal))
	}
	return nil
}

// patchCo64 rewrites a co64 full-box body in place: version/flags(4) +
// entry_count(4) + entry_count * u64 absolute offset.
func patchCo64(moov []byte, bodyStart, bodyLen int, delta int64) error {
	if bodyLen < 8 {
		return fmt.Errorf("moovfix: co64 body too small: %w", mp4err.ErrMalformedMoov)
	}
	count := boxio.U32(moov, bodyStart+4)
	need := 8 + int(count)*8
	if bodyLen < need {
		return fmt.Errorf("moovfix: co64 truncated: %w", mp4err.ErrMalformedMoov)
	}

	for i := 0; i < int(count); i++ {
		off := bodyStart + 8 + i*8
		entry := boxio.U64(moov, off)
		newVal := int64(entry) + delta
		if newVal < 0 {
			return fmt.Errorf("moovfix: co64 entry %d (%d -> %d): %w", i, entry, newVal, mp4err.ErrOffsetUnderflow)
		}
		boxio.PutU64(moov, off, uint64(newVal))
	}
	return nil
}

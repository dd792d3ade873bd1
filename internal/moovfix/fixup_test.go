package moovfix

import (
	"errors"
	"testing"

	"github.com/NanyangTaiji/mp4faststart/internal/boxio"
	"github.com/NanyangTaiji/mp4faststart/internal/mp4err"
	"github.com/NanyangTaiji/mp4faststart/internal/mp4fixture"
)

func TestFixupZeroDeltaIsNoop(t *testing.T) {
	stbl := mp4fixture.Wrap("stbl", mp4fixture.Encode("stco", mp4fixture.Stco([]uint32{100, 200})))
	before := append([]byte(nil), stbl...)

	if err := Fixup(stbl, 0); err != nil {
		t.Fatalf("Fixup: %v", err)
	}
	for i := range stbl {
		if stbl[i] != before[i] {
			t.Fatalf("delta==0 modified moov at byte %d", i)
		}
	}
}

func TestFixupPatchesStcoThroughContainerNesting(t *testing.T) {
	stco := mp4fixture.Encode("stco", mp4fixture.Stco([]uint32{1000, 2000, 3000}))
	stbl := mp4fixture.Wrap("stbl", stco)
	minf := mp4fixture.Wrap("minf", stbl)
	mdia := mp4fixture.Wrap("mdia", minf)
	trak := mp4fixture.Wrap("trak", mdia)
	moov := mp4fixture.Wrap("moov", trak)

	if err := Fixup(moov, 500); err != nil {
		t.Fatalf("Fixup: %v", err)
	}

	// Locate the stco entries inside the mutated moov buffer: trailing 12
	// bytes of the bottom-most box (version/flags + count already verified
	// by construction, entries are the last 3*4 bytes).
	n := len(moov)
	want := []uint32{1500, 2500, 3500}
	for i, w := range want {
		off := n - (len(want)-i)*4
		got := boxio.U32(moov, off)
		if got != w {
			t.Errorf("entry %d: got %d, want %d", i, got, w)
		}
	}
}

func TestFixupPatchesCo64(t *testing.T) {
	co64 := mp4fixture.Encode("co64", mp4fixture.Co64([]uint64{10_000_000_000, 20_000_000_000}))
	stbl := mp4fixture.Wrap("stbl", co64)
	moov := mp4fixture.Wrap("moov", stbl)

	if err := Fixup(moov, -5); err != nil {
		t.Fatalf("Fixup: %v", err)
	}

	n := len(moov)
	want := []uint64{9_999_999_995, 19_999_999_995}
	for i, w := range want {
		off := n - (len(want)-i)*8
		got := boxio.U64(moov, off)
		if got != w {
			t.Errorf("entry %d: got %d, want %d", i, got, w)
		}
	}
}

func TestFixupStcoOverflowFails(t *testing.T) {
	stco := mp4fixture.Encode("stco", mp4fixture.Stco([]uint32{maxStcoOffset - 1}))
	moov := mp4fixture.Wrap("moov", mp4fixture.Wrap("stbl", stco))

	err := Fixup(moov, 10)
	if !errors.Is(err, mp4err.ErrOffsetOverflow) {
		t.Fatalf("expected ErrOffsetOverflow, got %v", err)
	}
}

func TestFixupCo64UnderflowFails(t *testing.T) {
	co64 := mp4fixture.Encode("co64", mp4fixture.Co64([]uint64{4}))
	moov := mp4fixture.Wrap("moov", mp4fixture.Wrap("stbl", co64))

	err := Fixup(moov, -10)
	if !errors.Is(err, mp4err.ErrOffsetUnderflow) {
		t.Fatalf("expected ErrOffsetUnderflow, got %v", err)
	}
}

func TestFixupLeavesNonOffsetBoxesAlone(t *testing.T) {
	stsc := mp4fixture.Encode("stsc", []byte{0, 0, 0, 0, 0, 0, 0, 1})
	stbl := mp4fixture.Wrap("stbl", stsc)
	moov := mp4fixture.Wrap("moov", stbl)
	before := append([]byte(nil), moov...)

	if err := Fixup(moov, 123); err != nil {
		t.Fatalf("Fixup: %v", err)
	}
	for i := range moov {
		if moov[i] != before[i] {
			t.Fatalf("stsc-only moov modified at byte %d", i)
		}
	}
}

func TestFixupDescendsEveryContainerType(t *testing.T) {
	stco := mp4fixture.Encode("stco", mp4fixture.Stco([]uint32{42}))
	stbl := mp4fixture.Wrap("stbl", stco)
	minf := mp4fixture.Wrap("minf", stbl)
	mdia := mp4fixture.Wrap("mdia", minf)
	edts := mp4fixture.Wrap("edts", mp4fixture.Encode("elst", []byte{0, 0, 0, 0}))
	trak := mp4fixture.Wrap("trak", edts, mdia)
	udta := mp4fixture.Wrap("udta", mp4fixture.Encode("meta", []byte{1}))
	mvex := mp4fixture.Wrap("mvex", mp4fixture.Encode("mehd", []byte{0, 0, 0, 0}))
	moov := mp4fixture.Wrap("moov", trak, udta, mvex)

	if err := Fixup(moov, 7); err != nil {
		t.Fatalf("Fixup: %v", err)
	}

	// The stco entry is the last 4 bytes of trak, which follows moov's
	// 8-byte header; reaching it means the walk went past edts into mdia.
	if got := boxio.U32(moov, 8+len(trak)-4); got != 49 {
		t.Errorf("stco entry: got %d, want 49", got)
	}
}

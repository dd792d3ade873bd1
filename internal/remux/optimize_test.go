package remux

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/NanyangTaiji/mp4faststart/internal/boxio"
	"github.com/NanyangTaiji/mp4faststart/internal/mp4err"
	"github.com/NanyangTaiji/mp4faststart/internal/mp4fixture"
	"github.com/NanyangTaiji/mp4faststart/internal/scanner"
)

// memSink is an in-memory store.Sink for tests: it records whether Commit or
// Abort fired and keeps the bytes written so far either way.
type memSink struct {
	buf       bytes.Buffer
	committed bool
	aborted   bool
}

func (s *memSink) Write(p []byte) (int, error) { return s.buf.Write(p) }
func (s *memSink) Commit() error                { s.committed = true; return nil }
func (s *memSink) Abort() error                 { s.aborted = true; return nil }

// recordingListener captures the sequence of callbacks for assertions about
// ordering and monotonicity (spec.md P7).
type recordingListener struct {
	progress []float64
	succeeded bool
	err       error
}

func (l *recordingListener) OnProgress(f float64) { l.progress = append(l.progress, f) }
func (l *recordingListener) OnSuccess()            { l.succeeded = true }
func (l *recordingListener) OnError(err error)     { l.err = err }

func buildNotFastStart(t *testing.T) ([]byte, []uint32) {
	t.Helper()
	mdatPayload := make([]byte, 200)
	mdat := mp4fixture.Encode("mdat", mdatPayload)
	ftyp := mp4fixture.Encode("ftyp", []byte("isom"))

	// mdat will sit right after ftyp in the input: its payload starts at
	// len(ftyp)+8. Two samples reference absolute offsets within it.
	mdatPayloadOffset := int64(len(ftyp) + 8)
	offsets := []uint32{uint32(mdatPayloadOffset + 10), uint32(mdatPayloadOffset + 50)}
	stco := mp4fixture.Encode("stco", mp4fixture.Stco(offsets))
	moov := mp4fixture.Wrap("moov", mp4fixture.Wrap("trak", mp4fixture.Wrap("mdia", mp4fixture.Wrap("minf", mp4fixture.Wrap("stbl", stco)))))

	var data []byte
	data = append(data, ftyp...)
	data = append(data, mdat...)
	data = append(data, moov...)
	return data, offsets
}

func TestOptimizeRewritesAndShiftsOffsets(t *testing.T) {
	data, origOffsets := buildNotFastStart(t)
	src := mp4fixture.BytesReaderAt{Data: data}
	sink := &memSink{}
	listener := &recordingListener{}

	err := Optimize(context.Background(), src, sink, Options{}, listener)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if !sink.committed || sink.aborted {
		t.Fatalf("expected Commit only, got committed=%v aborted=%v", sink.committed, sink.aborted)
	}
	if !listener.succeeded || listener.err != nil {
		t.Fatalf("expected OnSuccess only, got succeeded=%v err=%v", listener.succeeded, listener.err)
	}

	out := sink.buf.Bytes()
	outSrc := mp4fixture.BytesReaderAt{Data: out}
	records, err := scanner.Scan(outSrc, outSrc.Size())
	if err != nil {
		t.Fatalf("scanning rewritten output: %v", err)
	}
	moovRec, ok := scanner.Find(records, "moov")
	if !ok {
		t.Fatal("rewritten output has no moov")
	}
	mdatRec, ok := scanner.Find(records, "mdat")
	if !ok {
		t.Fatal("rewritten output has no mdat")
	}
	if moovRec.HeaderOffset > mdatRec.HeaderOffset {
		t.Fatal("rewritten output is not fast-start: moov does not precede mdat")
	}

	// Verify the stco entries shifted by exactly the mdat offset delta.
	stcoOff := bytes.Index(out, []byte("stco"))
	if stcoOff < 0 {
		t.Fatal("no stco box found in rewritten output")
	}
	entry0 := boxio.U32(out, stcoOff+4+8)
	entry1 := boxio.U32(out, stcoOff+4+12)

	// Original mdat started right after ftyp (offset 12); in the new
	// layout mdat starts at mdatRec.HeaderOffset. The uniform delta is
	// the difference.
	origMdatHeaderOffset := int64(12)
	gotDelta := mdatRec.HeaderOffset - origMdatHeaderOffset
	want0 := uint32(int64(origOffsets[0]) + gotDelta)
	want1 := uint32(int64(origOffsets[1]) + gotDelta)
	if entry0 != want0 || entry1 != want1 {
		t.Errorf("stco entries = (%d, %d), want (%d, %d)", entry0, entry1, want0, want1)
	}
}

func TestOptimizeAlreadyFastStartTakesRawCopyPath(t *testing.T) {
	var data []byte
	data = append(data, mp4fixture.Encode("ftyp", []byte("isom"))...)
	data = append(data, mp4fixture.Encode("moov", make([]byte, 16))...)
	data = append(data, mp4fixture.Encode("mdat", make([]byte, 64))...)

	src := mp4fixture.BytesReaderAt{Data: data}
	sink := &memSink{}
	listener := &recordingListener{}

	if err := Optimize(context.Background(), src, sink, Options{}, listener); err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if !bytes.Equal(sink.buf.Bytes(), data) {
		t.Error("already-fast-start input should be copied byte-for-byte")
	}
	if !listener.succeeded {
		t.Error("expected OnSuccess")
	}
}

func TestOptimizeProgressIsMonotonicAndTerminates(t *testing.T) {
	data, _ := buildNotFastStart(t)
	src := mp4fixture.BytesReaderAt{Data: data}
	sink := &memSink{}
	listener := &recordingListener{}

	if err := Optimize(context.Background(), src, sink, Options{ChunkSize: 16}, listener); err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if len(listener.progress) == 0 {
		t.Fatal("expected at least one progress callback")
	}
	last := 0.0
	for _, f := range listener.progress {
		if f < last {
			t.Fatalf("progress went backwards: %v", listener.progress)
		}
		if f < 0 || f > 1 {
			t.Fatalf("progress out of [0,1]: %v", f)
		}
		last = f
	}
	if listener.progress[len(listener.progress)-1] != 1.0 {
		t.Errorf("final progress = %v, want 1.0", last)
	}
}

func TestOptimizeCancellationAbortsAndReportsError(t *testing.T) {
	data, _ := buildNotFastStart(t)
	src := mp4fixture.BytesReaderAt{Data: data}
	sink := &memSink{}
	listener := &recordingListener{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Optimize(ctx, src, sink, Options{}, listener)
	if err == nil {
		t.Fatal("expected an error for a pre-cancelled context")
	}
	if !errors.Is(err, mp4err.ErrCancelled) {
		t.Errorf("expected ErrCancelled, got %v", err)
	}
	if !sink.aborted || sink.committed {
		t.Errorf("expected Abort only, got committed=%v aborted=%v", sink.committed, sink.aborted)
	}
	if listener.err == nil || listener.succeeded {
		t.Error("expected OnError only")
	}
}

func TestOptimizeMoovTooLargeFails(t *testing.T) {
	data, _ := buildNotFastStart(t)
	src := mp4fixture.BytesReaderAt{Data: data}
	sink := &memSink{}
	listener := &recordingListener{}

	err := Optimize(context.Background(), src, sink, Options{MoovCapBytes: 4}, listener)
	if !errors.Is(err, mp4err.ErrMoovTooLarge) {
		t.Fatalf("expected ErrMoovTooLarge, got %v", err)
	}
	if !sink.aborted {
		t.Error("expected the sink to be aborted")
	}
}

func TestIsOptimized(t *testing.T) {
	fast, _ := buildNotFastStart(t) // ftyp, mdat, moov: not fast-start
	got, err := IsOptimized(mp4fixture.BytesReaderAt{Data: fast})
	if err != nil {
		t.Fatalf("IsOptimized: %v", err)
	}
	if got {
		t.Error("expected IsOptimized == false")
	}

	var reordered []byte
	reordered = append(reordered, mp4fixture.Encode("ftyp", []byte("isom"))...)
	reordered = append(reordered, mp4fixture.Encode("moov", make([]byte, 8))...)
	reordered = append(reordered, mp4fixture.Encode("mdat", make([]byte, 8))...)
	got, err = IsOptimized(mp4fixture.BytesReaderAt{Data: reordered})
	if err != nil {
		t.Fatalf("IsOptimized: %v", err)
	}
	if !got {
		t.Error("expected IsOptimized == true")
	}
}

// Package remux implements the fourth layer of the optimizer: given the
// scanned boxes and the decided layout, it invokes the fixup engine and
// streams ftyp, the rewritten moov, and every remaining box to the sink
// with progress callbacks (spec.md §4.4, §5).
package remux

import (
	"context"
	"errors"
	"fmt"

	"github.com/NanyangTaiji/mp4faststart/internal/applog"
	"github.com/NanyangTaiji/mp4faststart/internal/boxio"
	"github.com/NanyangTaiji/mp4faststart/internal/layout"
	"github.com/NanyangTaiji/mp4faststart/internal/moovfix"
	"github.com/NanyangTaiji/mp4faststart/internal/mp4err"
	"github.com/NanyangTaiji/mp4faststart/internal/scanner"
	"github.com/NanyangTaiji/mp4faststart/internal/store"
)

// DefaultChunkSize is the suggested copy chunk size for mdat and other
// large boxes (spec.md §4.4).
const DefaultChunkSize = 64 * 1024

// DefaultMoovCapBytes is the default refusal threshold for an in-memory
// moov payload (spec.md §5).
const DefaultMoovCapBytes = 512 * 1024 * 1024

// Listener receives progress and terminal callbacks for one Optimize call.
// Exactly one of OnSuccess/OnError is invoked per call, after a
// monotonically non-decreasing sequence of OnProgress fractions in [0, 1]
// (spec.md §5, §7). It is the Go-native shape of the original Java
// OptimizerListener (onProgress/onSuccess/onError) and the teacher's
// ProgressEvent-emitting callback in internal/bridge/app.go.
type Listener interface {
	OnProgress(fraction float64)
	OnSuccess()
	OnError(err error)
}

// NopListener implements Listener with no-ops, useful for callers that
// only care about the returned error.
type NopListener struct{}

func (NopListener) OnProgress(float64) {}
func (NopListener) OnSuccess()         {}
func (NopListener) OnError(error)      {}

// Options configures one Optimize call.
type Options struct {
	MoovCapBytes int64 // 0 means DefaultMoovCapBytes
	ChunkSize    int   // 0 means DefaultChunkSize
}

func (o Options) capBytes() int64 {
	if o.MoovCapBytes <= 0 {
		return DefaultMoovCapBytes
	}
	return o.MoovCapBytes
}

func (o Options) chunkSize() int {
	if o.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return o.ChunkSize
}

// Optimize rewrites src into sink so that moov precedes mdat, fixing up
// every stco/co64 entry to account for the relocation. It reports progress
// and a single terminal callback on listener. sink.Abort is called on any
// failure (including cancellation via ctx); sink.Commit is called on
// success.
func Optimize(ctx context.Context, src store.Source, sink store.Sink, opts Options, listener Listener) error {
	if listener == nil {
		listener = NopListener{}
	}

	n := src.Size()
	records, err := scanner.Scan(src, n)
	if err != nil {
		return fail(sink, listener, fmt.Errorf("remux: scanning boxes: %w", err))
	}

	plan, err := layout.Build(records)
	if err != nil {
		return fail(sink, listener, err)
	}

	if plan.Moov.PayloadLen > opts.capBytes() {
		return fail(sink, listener, fmt.Errorf(
			"remux: moov payload %d bytes exceeds cap %d: %w",
			plan.Moov.PayloadLen, opts.capBytes(), mp4err.ErrMoovTooLarge))
	}

	reporter := newProgressReporter(n, listener)

	if plan.AlreadyFastStart() {
		applog.Logger().Debug("remux: already fast-start, raw copy", "mdat_delta", plan.MdatDelta)
		if err := copyChunked(ctx, sink, src, 0, n, opts.chunkSize(), reporter.add); err != nil {
			return fail(sink, listener, err)
		}
		return succeed(sink, listener)
	}

	moovBuf := make([]byte, plan.Moov.PayloadLen)
	if _, err := src.ReadAt(moovBuf, plan.Moov.PayloadOffset); err != nil {
		return fail(sink, listener, fmt.Errorf("remux: reading moov payload: %w", err))
	}

	if err := moovfix.Fixup(moovBuf, plan.MdatDelta); err != nil {
		return fail(sink, listener, fmt.Errorf("remux: fixing up moov: %w", err))
	}

	if plan.Ftyp != nil {
		if err := copyChunked(ctx, sink, src, plan.Ftyp.HeaderOffset, plan.Ftyp.TotalLen(), opts.chunkSize(), reporter.add); err != nil {
			return fail(sink, listener, err)
		}
	}

	if err := writeMoovHeader(sink, plan); err != nil {
		return fail(sink, listener, fmt.Errorf("remux: writing moov header: %w", err))
	}
	if _, err := sink.Write(moovBuf); err != nil {
		return fail(sink, listener, fmt.Errorf("remux: writing moov payload: %w", err))
	}
	reporter.add(plan.NewMoovHeaderLen + int64(len(moovBuf)))

	for _, box := range plan.RemainingInOrder() {
		if err := checkCancelled(ctx); err != nil {
			return fail(sink, listener, err)
		}
		if err := copyChunked(ctx, sink, src, box.HeaderOffset, box.TotalLen(), opts.chunkSize(), reporter.add); err != nil {
			return fail(sink, listener, err)
		}
	}

	return succeed(sink, listener)
}

func writeMoovHeader(w store.Sink, plan *layout.Plan) error {
	moov := boxio.NewFourCC("moov")
	if plan.NewMoovNeeds64BitHeader() {
		header := make([]byte, 16)
		boxio.PutU32(header, 0, 1)
		copy(header[4:8], moov[:])
		boxio.PutU64(header, 8, uint64(plan.NewMoovHeaderLen + plan.Moov.PayloadLen))
		_, err := w.Write(header)
		return err
	}
	header := make([]byte, 8)
	boxio.PutU32(header, 0, uint32(plan.NewMoovHeaderLen+plan.Moov.PayloadLen))
	copy(header[4:8], moov[:])
	_, err := w.Write(header)
	return err
}

// copyChunked copies length bytes starting at srcOffset from src to dst in
// opts-sized chunks, polling ctx between chunks (spec.md §5's "writer
// polls [cancellation] between chunk copies").
func copyChunked(ctx context.Context, dst store.Sink, src store.Source, srcOffset, length int64, chunkSize int, report func(int64)) error {
	remaining := length
	offset := srcOffset
	buf := make([]byte, chunkSize)

	for remaining > 0 {
		if err := checkCancelled(ctx); err != nil {
			return err
		}
		n := int64(chunkSize)
		if remaining < n {
			n = remaining
		}
		chunk := buf[:n]
		if _, err := src.ReadAt(chunk, offset); err != nil {
			return fmt.Errorf("remux: reading at %d: %w", offset, err)
		}
		if _, err := dst.Write(chunk); err != nil {
			return fmt.Errorf("remux: writing: %w", err)
		}
		offset += n
		remaining -= n
		report(n)
	}
	return nil
}

func checkCancelled(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("remux: %w", mp4err.ErrCancelled)
	default:
		return nil
	}
}

func fail(sink store.Sink, listener Listener, err error) error {
	if abortErr := sink.Abort(); abortErr != nil {
		err = errors.Join(err, fmt.Errorf("remux: aborting sink: %w", abortErr))
	}
	listener.OnError(err)
	return err
}

func succeed(sink store.Sink, listener Listener) error {
	if err := sink.Commit(); err != nil {
		listener.OnError(err)
		return err
	}
	listener.OnProgress(1.0)
	listener.OnSuccess()
	return nil
}

// progressReporter turns cumulative bytes written into a monotonically
// non-decreasing [0,1] fraction (spec.md §5, P7).
type progressReporter struct {
	total    int64
	written  int64
	listener Listener
}

func newProgressReporter(total int64, listener Listener) *progressReporter {
	return &progressReporter{total: total, listener: listener}
}

func (r *progressReporter) add(n int64) {
	r.written += n
	fraction := 1.0
	if r.total > 0 {
		fraction = float64(r.written) / float64(r.total)
	}
	if fraction > 1 {
		fraction = 1
	}
	if fraction < 0 {
		fraction = 0
	}
	r.listener.OnProgress(fraction)
}

// IsOptimized reports whether src is already fast-start: moov precedes
// mdat. It is a cheap structural check, equivalent to running Optimize's
// planning phase without the rewrite (spec.md §6.2's is_optimized).
func IsOptimized(src store.Source) (bool, error) {
	n := src.Size()
	records, err := scanner.Scan(src, n)
	if err != nil {
		return false, fmt.Errorf("remux: scanning boxes: %w", err)
	}
	moov, hasMoov := scanner.Find(records, "moov")
	mdat, hasMdat := scanner.Find(records, "mdat")
	if !hasMoov {
		return false, fmt.Errorf("remux: no moov box: %w", mp4err.ErrMissingBox)
	}
	if !hasMdat {
		return false, fmt.Errorf("remux: no mdat box: %w", mp4err.ErrMissingBox)
	}
	return moov.HeaderOffset < mdat.HeaderOffset, nil
}

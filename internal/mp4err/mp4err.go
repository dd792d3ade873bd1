// Package mp4err defines the sentinel error taxonomy shared by the scanner,
// fixup engine, planner, and writer so callers can distinguish failure kinds
// with errors.Is instead of parsing messages.
package mp4err

import "errors"

var (
	// ErrTruncatedBox is returned when fewer than 8 bytes remain where a
	// box header was expected.
	ErrTruncatedBox = errors.New("mp4faststart: truncated box header")

	// ErrInvalidBoxSize is returned when a declared box size is invalid
	// (less than 8 and not 0 or 1, or it would extend past EOF).
	ErrInvalidBoxSize = errors.New("mp4faststart: invalid box size")

	// ErrMalformedMoov is returned when the moov container walk encounters
	// a structurally invalid nested box.
	ErrMalformedMoov = errors.New("mp4faststart: malformed moov")

	// ErrMissingBox is returned when no moov or no mdat box is present.
	ErrMissingBox = errors.New("mp4faststart: missing required box")

	// ErrMoovTooLarge is returned when moov's payload exceeds the
	// configured cap.
	ErrMoovTooLarge = errors.New("mp4faststart: moov payload too large")

	// ErrOffsetOverflow is returned when an adjusted stco entry would fall
	// outside [0, 2^31-1].
	ErrOffsetOverflow = errors.New("mp4faststart: chunk offset overflow")

	// ErrOffsetUnderflow is returned when an adjusted co64 entry would be
	// negative.
	ErrOffsetUnderflow = errors.New("mp4faststart: chunk offset underflow")

	// ErrCancelled is returned when the caller cancels an in-flight
	// optimize call.
	ErrCancelled = errors.New("mp4faststart: cancelled")
)

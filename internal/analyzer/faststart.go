// Package analyzer provides the path-based convenience wrapper around the
// fast-start probe, grounded directly on the teacher's
// internal/analyzer/inspector.go (CheckFastStart).
package analyzer

import (
	"fmt"

	"github.com/NanyangTaiji/mp4faststart/internal/remux"
	"github.com/NanyangTaiji/mp4faststart/internal/store"
)

// CheckFastStart returns true if the MP4 file at path already has moov
// before mdat. It returns an error if the box structure is invalid or
// required boxes are missing.
func CheckFastStart(path string) (bool, error) {
	src, err := store.OpenFile(path)
	if err != nil {
		return false, fmt.Errorf("analyzer: open %s: %w", path, err)
	}
	defer src.Close()

	return remux.IsOptimized(src)
}

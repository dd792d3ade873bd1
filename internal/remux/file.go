package remux

import (
	"context"
	"fmt"
	"os"

	"github.com/NanyangTaiji/mp4faststart/internal/store"
)

// OptimizeFile runs Optimize against local files. If inPath and outPath are
// the same path, it follows the teacher's (internal/optimizer/rewriter.go)
// rename-to-backup recovery dance: the original is renamed to
// "<path>.bak", read from there, and either removed (success) or renamed
// back into place (failure) so a crash mid-run never loses the input.
func OptimizeFile(ctx context.Context, inPath, outPath string, opts Options, listener Listener) error {
	if inPath != outPath {
		return optimizeDistinctFiles(ctx, inPath, outPath, opts, listener)
	}
	return optimizeInPlace(ctx, inPath, opts, listener)
}

func optimizeDistinctFiles(ctx context.Context, inPath, outPath string, opts Options, listener Listener) error {
	src, err := store.OpenFile(inPath)
	if err != nil {
		return fmt.Errorf("remux: opening %s: %w", inPath, err)
	}
	defer src.Close()

	sink, err := store.NewFileSink(outPath)
	if err != nil {
		return fmt.Errorf("remux: staging output for %s: %w", outPath, err)
	}

	return Optimize(ctx, src, sink, opts, listener)
}

func optimizeInPlace(ctx context.Context, path string, opts Options, listener Listener) error {
	bakPath := path + ".bak"
	if err := os.Rename(path, bakPath); err != nil {
		return fmt.Errorf("remux: backing up %s: %w", path, err)
	}

	src, err := store.OpenFile(bakPath)
	if err != nil {
		os.Rename(bakPath, path)
		return fmt.Errorf("remux: opening backup %s: %w", bakPath, err)
	}
	defer src.Close()

	sink, err := store.NewFileSink(path)
	if err != nil {
		os.Rename(bakPath, path)
		return fmt.Errorf("remux: staging output for %s: %w", path, err)
	}

	if err := Optimize(ctx, src, sink, opts, listener); err != nil {
		os.Rename(bakPath, path)
		return err
	}

	os.Remove(bakPath)
	return nil
}

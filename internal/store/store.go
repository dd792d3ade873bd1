// Package store provides the random-access Source and sequential Sink
// abstractions optimize() reads from and writes to. Spec.md §6.2 requires
// inputs to "abstract over concrete file-system vs. opaque streams; both
// require random access (seek + read)" — FileSource/FileSink are the
// local-disk implementation (grounded on the teacher's rename-to-.bak
// recovery dance in internal/optimizer/rewriter.go), and S3Source/S3Sink
// (s3store.go) are an object-storage implementation grounded on the
// file-storage starters' aws-sdk-go-v2 usage.
package store

import (
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Source is a random-access byte source of known length.
type Source interface {
	io.ReaderAt
	Size() int64
}

// Sink is a sequential byte sink that is only made durable on Commit; Abort
// discards everything written so far. Exactly one of Commit/Abort must be
// called.
type Sink interface {
	io.Writer
	Commit() error
	Abort() error
}

// FileSource is a Source backed by an open local file.
type FileSource struct {
	f    *os.File
	size int64
}

// OpenFile opens path read-only and stats its size.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &FileSource{f: f, size: info.Size()}, nil
}

func (s *FileSource) ReadAt(p []byte, off int64) (int, error) { return s.f.ReadAt(p, off) }
func (s *FileSource) Size() int64                             { return s.size }
func (s *FileSource) Close() error                             { return s.f.Close() }

// FileSink is a Sink that stages writes in a temp file beside the target
// path and only renames it into place on Commit, so a reader of the target
// path never observes a partially written file and a crash mid-write never
// corrupts it (spec.md §4.4's "partially written output file must be
// deleted before the error is reported").
type FileSink struct {
	target  string
	tmp     *os.File
	tmpPath string
}

// NewFileSink creates a staging file beside target (same directory, so the
// final rename is atomic on the same filesystem).
func NewFileSink(target string) (*FileSink, error) {
	dir := filepath.Dir(target)
	tmpPath := filepath.Join(dir, filepath.Base(target)+"_tmp_"+uuid.NewString()+".mp4")
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, err
	}
	return &FileSink{target: target, tmp: f, tmpPath: tmpPath}, nil
}

func (s *FileSink) Write(p []byte) (int, error) { return s.tmp.Write(p) }

// Commit closes the staging file and renames it into place.
func (s *FileSink) Commit() error {
	if err := s.tmp.Close(); err != nil {
		os.Remove(s.tmpPath)
		return err
	}
	return os.Rename(s.tmpPath, s.target)
}

// Abort closes and removes the staging file.
func (s *FileSink) Abort() error {
	s.tmp.Close()
	return os.Remove(s.tmpPath)
}

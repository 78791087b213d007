package loaders

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/df07/go-envmap-prefilter/pkg/core"
	"github.com/df07/go-envmap-prefilter/pkg/scheduler"
)

// OutputName returns the file name of a job's output image
func OutputName(job scheduler.Job) string {
	return job.ID + ".png"
}

// DirectorySink writes each finished image to <dir>/<id>.png. Files are
// written to a temporary name and renamed, so a reader never sees a
// partially written image.
type DirectorySink struct {
	dir    string
	logger core.Logger
}

// NewDirectorySink creates dir if needed
func NewDirectorySink(dir string, logger core.Logger) (*DirectorySink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &DirectorySink{dir: dir, logger: logger}, nil
}

// Dir returns the output directory
func (ds *DirectorySink) Dir() string {
	return ds.dir
}

// Emit implements scheduler.OutputSink
func (ds *DirectorySink) Emit(job scheduler.Job, img *image.RGBA) error {
	path := filepath.Join(ds.dir, OutputName(job))

	tmp, err := os.CreateTemp(ds.dir, ".tmp-*.png")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if ds.logger != nil {
		ds.logger.Printf("Saved %s\n", path)
	}
	return nil
}

// ZipSink collects finished images into a single zip archive. PNG data is
// already compressed, so entries are stored.
type ZipSink struct {
	mu     sync.Mutex
	zw     *zip.Writer
	closer io.Closer
	count  int
}

// NewZipSink writes the archive to w. Close finishes the archive but does not
// close w.
func NewZipSink(w io.Writer) *ZipSink {
	return &ZipSink{zw: zip.NewWriter(w)}
}

// CreateZipSink creates the archive file at path
func CreateZipSink(path string) (*ZipSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	zs := NewZipSink(f)
	zs.closer = f
	return zs, nil
}

// Emit implements scheduler.OutputSink. The image is encoded before the entry
// is created so a failed encode leaves no partial entry behind.
func (zs *ZipSink) Emit(job scheduler.Job, img *image.RGBA) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("failed to encode %s: %w", job.ID, err)
	}

	zs.mu.Lock()
	defer zs.mu.Unlock()

	w, err := zs.zw.CreateHeader(&zip.FileHeader{
		Name:     OutputName(job),
		Method:   zip.Store,
		Modified: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", job.ID, err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", job.ID, err)
	}
	zs.count++
	return nil
}

// Count returns the number of images written
func (zs *ZipSink) Count() int {
	zs.mu.Lock()
	defer zs.mu.Unlock()
	return zs.count
}

// Close finishes the archive
func (zs *ZipSink) Close() error {
	zs.mu.Lock()
	defer zs.mu.Unlock()

	err := zs.zw.Close()
	if zs.closer != nil {
		if cerr := zs.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

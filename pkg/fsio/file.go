package fsio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/cuemby/modio-go/pkg/async"
	"github.com/cuemby/modio-go/pkg/dynbuf"
	"github.com/cuemby/modio-go/pkg/errcode"
)

// Mode selects how a file is opened.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

// SeekDirection selects how Seek interprets its offset.
type SeekDirection int

const (
	SeekAbsolute SeekDirection = iota
	SeekForward
	SeekBackward
)

// File is an async file object: every read/write is performed on a
// dedicated goroutine under the file's mutex and its result posted back
// through the file's own Strand. Calls against one File never overlap, but
// concurrently submitted calls run in whatever order their goroutines take
// the mutex, which is not necessarily the order they were submitted.
// The 1ms-poll described by the source collapses here to a goroutine doing
// a blocking syscall and posting its result — Go's runtime already
// schedules blocking I/O cooperatively, so no busy-poll is needed.
type File struct {
	exec   *async.Executor
	strand *async.Strand

	mu        sync.Mutex
	f         *os.File
	mode      Mode
	path      string
	cancelled atomic.Bool
}

// Open opens path for reading or read-write, creating parent directories
// as needed. overwrite, when true and mode is ReadWrite, truncates any
// existing content.
func Open(exec *async.Executor, path string, mode Mode, overwrite bool) (*File, error) {
	if mode == ReadWrite {
		if err := CreateFolder(filepath.Dir(path)); err != nil {
			return nil, err
		}
	}

	flags := os.O_RDONLY
	if mode == ReadWrite {
		flags = os.O_RDWR | os.O_CREATE
		if overwrite {
			flags |= os.O_TRUNC
		}
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, classifyOpenError(err)
	}
	return &File{
		exec:   exec,
		strand: async.NewStrand(exec),
		f:      f,
		mode:   mode,
		path:   path,
	}, nil
}

// Create opens path for writing, truncating any existing content. It is
// equivalent to Open(path, ReadWrite, overwrite=true).
func Create(exec *async.Executor, path string) (*File, error) {
	return Open(exec, path, ReadWrite, true)
}

// CancelAll sets the sticky cancellation flag observed by the next
// submitted operation.
func (f *File) CancelAll() {
	f.cancelled.Store(true)
}

// Close releases the underlying OS file handle.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.f.Close()
}

// Size returns the file's current size via a Future resolved on the
// strand.
func (f *File) Size() *async.Future[int64] {
	fut := async.NewFuture[int64]()
	go func() {
		result := func() (int64, error) {
			if f.cancelled.Load() {
				return 0, errcode.Cancelled
			}
			f.mu.Lock()
			defer f.mu.Unlock()
			info, err := f.f.Stat()
			if err != nil {
				return 0, errcode.FileNotFound.With("%v", err)
			}
			return info.Size(), nil
		}
		v, err := result()
		f.strand.Post(func() { fut.Complete(v, err) })
	}()
	return fut
}

// Seek moves the file's read/write position.
func (f *File) Seek(offset int64, dir SeekDirection) *async.Future[int64] {
	fut := async.NewFuture[int64]()
	go func() {
		result := func() (int64, error) {
			if f.cancelled.Load() {
				return 0, errcode.Cancelled
			}
			var whence int
			switch dir {
			case SeekAbsolute:
				whence = io.SeekStart
			case SeekForward:
				whence = io.SeekCurrent
			case SeekBackward:
				whence = io.SeekCurrent
				offset = -offset
			}
			f.mu.Lock()
			defer f.mu.Unlock()
			return f.f.Seek(offset, whence)
		}
		v, err := result()
		f.strand.Post(func() { fut.Complete(v, err) })
	}()
	return fut
}

// ReadSomeAtResult is the outcome of ReadSomeAt: partial reads are normal,
// and EOF alongside non-empty data is not an error to the caller.
type ReadSomeAtResult struct {
	Data []byte
	EOF  bool
}

// ReadSomeAt reads up to maxBytes starting at offset without moving the
// file's seek pointer.
func (f *File) ReadSomeAt(offset int64, maxBytes int) *async.Future[ReadSomeAtResult] {
	fut := async.NewFuture[ReadSomeAtResult]()
	go func() {
		result := func() (ReadSomeAtResult, error) {
			if f.cancelled.Load() {
				return ReadSomeAtResult{}, errcode.Cancelled
			}
			buf := make([]byte, maxBytes)
			f.mu.Lock()
			n, err := f.f.ReadAt(buf, offset)
			f.mu.Unlock()
			if err != nil && !errors.Is(err, io.EOF) {
				return ReadSomeAtResult{}, errcode.FileNotFound.With("read error: %v", err)
			}
			return ReadSomeAtResult{Data: buf[:n], EOF: errors.Is(err, io.EOF)}, nil
		}
		v, err := result()
		f.strand.Post(func() { fut.Complete(v, err) })
	}()
	return fut
}

// ReadSome reads up to maxBytes at the current seek position into dst,
// advancing the seek pointer by the number of bytes read.
func (f *File) ReadSome(maxBytes int, dst *dynbuf.Buffer) *async.Future[ReadSomeAtResult] {
	fut := async.NewFuture[ReadSomeAtResult]()
	go func() {
		result := func() (ReadSomeAtResult, error) {
			if f.cancelled.Load() {
				return ReadSomeAtResult{}, errcode.Cancelled
			}
			buf := make([]byte, maxBytes)
			f.mu.Lock()
			n, err := f.f.Read(buf)
			f.mu.Unlock()
			if err != nil && !errors.Is(err, io.EOF) {
				return ReadSomeAtResult{}, errcode.FileNotFound.With("read error: %v", err)
			}
			out := buf[:n]
			dst.Append(out)
			return ReadSomeAtResult{Data: out, EOF: errors.Is(err, io.EOF)}, nil
		}
		v, err := result()
		f.strand.Post(func() { fut.Complete(v, err) })
	}()
	return fut
}

// WriteSomeAt writes p at offset without moving the file's seek pointer.
// Fails with no_permission against a ReadOnly file.
func (f *File) WriteSomeAt(offset int64, p []byte) *async.Future[int] {
	fut := async.NewFuture[int]()
	go func() {
		result := func() (int, error) {
			if f.cancelled.Load() {
				return 0, errcode.Cancelled
			}
			if f.mode == ReadOnly {
				return 0, errcode.PermissionDenied.With("file opened read-only: %s", f.path)
			}
			f.mu.Lock()
			n, err := f.f.WriteAt(p, offset)
			f.mu.Unlock()
			if err != nil {
				return n, errcode.PermissionDenied.With("write error: %v", err)
			}
			return n, nil
		}
		v, err := result()
		f.strand.Post(func() { fut.Complete(v, err) })
	}()
	return fut
}

// WriteSome writes p at the current seek position, advancing it.
func (f *File) WriteSome(p []byte) *async.Future[int] {
	fut := async.NewFuture[int]()
	go func() {
		result := func() (int, error) {
			if f.cancelled.Load() {
				return 0, errcode.Cancelled
			}
			if f.mode == ReadOnly {
				return 0, errcode.PermissionDenied.With("file opened read-only: %s", f.path)
			}
			f.mu.Lock()
			n, err := f.f.Write(p)
			f.mu.Unlock()
			if err != nil {
				return n, errcode.PermissionDenied.With("write error: %v", err)
			}
			return n, nil
		}
		v, err := result()
		f.strand.Post(func() { fut.Complete(v, err) })
	}()
	return fut
}

// Rename closes the file, renames it on disk, then reopens it at the new
// path.
func (f *File) Rename(newPath string) *async.Future[struct{}] {
	fut := async.NewFuture[struct{}]()
	go func() {
		result := func() error {
			if f.cancelled.Load() {
				return errcode.Cancelled
			}
			f.mu.Lock()
			defer f.mu.Unlock()
			if err := f.f.Close(); err != nil {
				return errcode.PermissionDenied.With("close before rename failed: %v", err)
			}
			if err := CreateFolder(filepath.Dir(newPath)); err != nil {
				return err
			}
			if err := os.Rename(f.path, newPath); err != nil {
				return errcode.PermissionDenied.With("rename failed: %v", err)
			}
			flags := os.O_RDONLY
			if f.mode == ReadWrite {
				flags = os.O_RDWR | os.O_CREATE
			}
			reopened, err := os.OpenFile(newPath, flags, 0o644)
			if err != nil {
				return classifyOpenError(err)
			}
			f.f = reopened
			f.path = newPath
			return nil
		}
		err := result()
		f.strand.Post(func() { fut.Complete(struct{}{}, err) })
	}()
	return fut
}

// Truncate resizes the file to newSize.
func (f *File) Truncate(newSize int64) *async.Future[struct{}] {
	fut := async.NewFuture[struct{}]()
	go func() {
		result := func() error {
			if f.cancelled.Load() {
				return errcode.Cancelled
			}
			if f.mode == ReadOnly {
				return errcode.PermissionDenied.With("file opened read-only: %s", f.path)
			}
			f.mu.Lock()
			defer f.mu.Unlock()
			if err := f.f.Truncate(newSize); err != nil {
				return errcode.PermissionDenied.With("truncate failed: %v", err)
			}
			return nil
		}
		err := result()
		f.strand.Post(func() { fut.Complete(struct{}{}, err) })
	}()
	return fut
}

// BlockingIO adapts a File to the stdlib io.Reader/Writer/Seeker/ReaderAt
// contracts the zip archive engine (pkg/archive) is written against,
// for callers on a goroutine that isn't the host's own Pump loop. Each
// call posts the underlying async operation and blocks via async.Await,
// which pumps the File's executor itself rather than waiting on some
// other goroutine to do it.
type BlockingIO struct {
	f *File
}

// IO returns a blocking io.Reader/Writer/Seeker/ReaderAt view of f. The
// underlying os.File's seek position is shared state, same as it would be
// for any two io.Reader/io.Writer wrappers over one handle.
func (f *File) IO() *BlockingIO {
	return &BlockingIO{f: f}
}

// Read implements io.Reader.
func (b *BlockingIO) Read(p []byte) (int, error) {
	discard := dynbuf.New()
	res, err := async.Await(context.Background(), b.f.exec, b.f.ReadSome(len(p), discard))
	if err != nil {
		return 0, err
	}
	n := copy(p, res.Data)
	if res.EOF && n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// ReadAt implements io.ReaderAt.
func (b *BlockingIO) ReadAt(p []byte, off int64) (int, error) {
	res, err := async.Await(context.Background(), b.f.exec, b.f.ReadSomeAt(off, len(p)))
	if err != nil {
		return 0, err
	}
	n := copy(p, res.Data)
	if res.EOF && n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Write implements io.Writer.
func (b *BlockingIO) Write(p []byte) (int, error) {
	return async.Await(context.Background(), b.f.exec, b.f.WriteSome(p))
}

// Seek implements io.Seeker. SeekEnd is not supported by the underlying
// async File and returns an error; neither archive reader nor writer need
// it.
func (b *BlockingIO) Seek(offset int64, whence int) (int64, error) {
	var dir SeekDirection
	switch whence {
	case io.SeekStart:
		dir = SeekAbsolute
	case io.SeekCurrent:
		dir = SeekForward
	default:
		return 0, errcode.BadParameter.With("fsio: BlockingIO.Seek does not support whence %d", whence)
	}
	return async.Await(context.Background(), b.f.exec, b.f.Seek(offset, dir))
}

// Close releases the underlying file handle.
func (b *BlockingIO) Close() error {
	return b.f.Close()
}

func classifyOpenError(err error) error {
	switch {
	case os.IsNotExist(err):
		return errcode.FileNotFound.With("%v", err)
	case os.IsPermission(err):
		return errcode.PermissionDenied.With("%v", err)
	default:
		return fmt.Errorf("fsio: unable to create handle: %w", err)
	}
}

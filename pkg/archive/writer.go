package archive

import (
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/cuemby/modio-go/pkg/errcode"
	"github.com/klauspost/compress/flate"
)

// writtenRecord is the bookkeeping Writer keeps per entry so Finalize can
// emit a matching central directory.
type writtenRecord struct {
	name              string
	compression       CompressionMethod
	localHeaderOffset uint64
	compressedSize    uint64
	uncompressedSize  uint64
	crc32             uint32
	isDirectory       bool
}

// Writer packages files into a zip archive written sequentially to w. Every
// local header reserves a Zip64 extra field up front so Finalize can
// auto-promote any entry whose size overflows 32 bits without rewriting
// already-written payload bytes.
type Writer struct {
	w       io.WriteSeeker
	offset  uint64
	records []writtenRecord
}

// NewWriter returns a Writer that emits a zip archive to w, which must
// support Seek so AddFileEntry can patch each local header's size/CRC
// fields after streaming its payload. Callers pass an fsio.File's
// *fsio.BlockingIO view so the compress step runs through the same async
// file layer as every other byte-moving operation.
func NewWriter(w io.WriteSeeker) *Writer {
	return &Writer{w: w}
}

// AddDirectoryEntry records a bare directory entry. name should not include
// a trailing slash; one is added if missing.
func (wr *Writer) AddDirectoryEntry(name string) error {
	if len(name) == 0 || name[len(name)-1] != '/' {
		name += "/"
	}
	localOffset := wr.offset
	if err := wr.writeLocalHeader(name, Store, 0, 0, 0); err != nil {
		return err
	}
	wr.records = append(wr.records, writtenRecord{
		name:              name,
		compression:       Store,
		localHeaderOffset: localOffset,
		isDirectory:       true,
	})
	return nil
}

// countingReader wraps r to track how many bytes have been read from it,
// used here to recover the uncompressed size of a streamed entry without
// buffering it.
type countingReader struct {
	r io.Reader
	n uint64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += uint64(n)
	return n, err
}

// countingWriter tracks how many bytes have been written to w, used to
// recover a deflate stream's compressed size.
type countingWriter struct {
	w io.Writer
	n uint64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += uint64(n)
	return n, err
}

// AddFileEntry streams r's content into the archive under name using the
// requested compression method, then patches the local header with the
// final sizes and CRC-32 once they are known.
func (wr *Writer) AddFileEntry(name string, compression CompressionMethod, r io.Reader) error {
	localOffset := wr.offset
	if err := wr.writeLocalHeader(name, compression, 0, 0, 0); err != nil {
		return err
	}

	checksum := crc32.New(crcTable())
	counted := &countingReader{r: io.TeeReader(r, checksum)}

	var compressedSize uint64
	switch compression {
	case Store:
		n, err := io.Copy(wr.w, counted)
		if err != nil {
			return errcode.FileNotFound.With("archive write failed for %q: %v", name, err)
		}
		compressedSize = uint64(n)
	case Deflate:
		cw := &countingWriter{w: wr.w}
		fw, err := flate.NewWriter(cw, flate.DefaultCompression)
		if err != nil {
			return errcode.CompressionFailed.With("deflate writer init failed: %v", err)
		}
		if _, err := io.Copy(fw, counted); err != nil {
			return errcode.CompressionFailed.With("deflate write failed for %q: %v", name, err)
		}
		if err := fw.Close(); err != nil {
			return errcode.CompressionFailed.With("deflate flush failed for %q: %v", name, err)
		}
		compressedSize = cw.n
	default:
		return errcode.ArchiveUnsupportedZip.With("unsupported compression method %d", compression)
	}
	wr.offset += compressedSize
	uncompressedSize := counted.n
	crcSum := checksum.Sum32()

	if err := wr.patchLocalHeader(localOffset, len(name), crcSum, compressedSize, uncompressedSize); err != nil {
		return err
	}

	wr.records = append(wr.records, writtenRecord{
		name:              name,
		compression:       compression,
		localHeaderOffset: localOffset,
		compressedSize:    compressedSize,
		uncompressedSize:  uncompressedSize,
		crc32:             crcSum,
	})
	return nil
}

// writeLocalHeader emits a 30-byte local file header, the name, and a
// reserved 20-byte Zip64 extra field (4-byte header + 16-byte payload)
// that AddFileEntry's patch pass fills in once the real sizes are known.
// Reserving the slot unconditionally means a payload discovered to
// overflow 32 bits never requires rewriting bytes that were already
// streamed to disk.
func (wr *Writer) writeLocalHeader(name string, compression CompressionMethod, crc uint32, compressedSize, uncompressedSize uint64) error {
	nameBytes := []byte(name)
	hdr := make([]byte, localDirectoryHeaderSize+len(nameBytes)+4+zip64ExtraFieldSize)
	binary.LittleEndian.PutUint32(hdr[0:], sigLocalDirectoryHeader)
	binary.LittleEndian.PutUint16(hdr[4:], zip64Version)
	binary.LittleEndian.PutUint16(hdr[6:], 0) // general purpose flags
	binary.LittleEndian.PutUint16(hdr[8:], uint16(compression))
	binary.LittleEndian.PutUint16(hdr[10:], 0) // mod time
	binary.LittleEndian.PutUint16(hdr[12:], 0) // mod date
	binary.LittleEndian.PutUint32(hdr[14:], crc)
	putSize32(hdr[18:], compressedSize)
	putSize32(hdr[22:], uncompressedSize)
	binary.LittleEndian.PutUint16(hdr[26:], uint16(len(nameBytes)))
	binary.LittleEndian.PutUint16(hdr[28:], 4+zip64ExtraFieldSize)
	copy(hdr[30:], nameBytes)
	extraOff := 30 + len(nameBytes)
	binary.LittleEndian.PutUint16(hdr[extraOff:], extendedInformationFieldHeaderID)
	binary.LittleEndian.PutUint16(hdr[extraOff+2:], zip64ExtraFieldSize)
	binary.LittleEndian.PutUint64(hdr[extraOff+4:], uncompressedSize)
	binary.LittleEndian.PutUint64(hdr[extraOff+12:], compressedSize)

	n, err := wr.w.Write(hdr)
	if err != nil {
		return errcode.FileNotFound.With("unable to write local header for %q: %v", name, err)
	}
	wr.offset += uint64(n)
	return nil
}

// patchLocalHeader seeks back to a header written by writeLocalHeader and
// fills in its final CRC, its 32-bit size fields (promoted to the
// 0xFFFFFFFF sentinel whenever either size overflows 32 bits), and the
// reserved Zip64 extra field's true 64-bit sizes.
func (wr *Writer) patchLocalHeader(localOffset uint64, nameLen int, crc uint32, compressedSize, uncompressedSize uint64) error {
	cur, err := wr.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return errcode.FileNotFound.With("unable to snapshot write position: %v", err)
	}

	fixed := make([]byte, 12)
	binary.LittleEndian.PutUint32(fixed[0:], crc)
	putSize32(fixed[4:], compressedSize)
	putSize32(fixed[8:], uncompressedSize)
	if _, err := wr.w.Seek(int64(localOffset)+14, io.SeekStart); err != nil {
		return errcode.FileNotFound.With("unable to seek to local header for patch: %v", err)
	}
	if _, err := wr.w.Write(fixed); err != nil {
		return errcode.FileNotFound.With("unable to patch local header sizes: %v", err)
	}

	extra := make([]byte, zip64ExtraFieldSize)
	binary.LittleEndian.PutUint64(extra[0:], uncompressedSize)
	binary.LittleEndian.PutUint64(extra[8:], compressedSize)
	extraDataOffset := int64(localOffset) + localDirectoryHeaderSize + int64(nameLen) + 4
	if _, err := wr.w.Seek(extraDataOffset, io.SeekStart); err != nil {
		return errcode.FileNotFound.With("unable to seek to zip64 extra field for patch: %v", err)
	}
	if _, err := wr.w.Write(extra); err != nil {
		return errcode.FileNotFound.With("unable to patch zip64 extra field: %v", err)
	}

	if _, err := wr.w.Seek(cur, io.SeekStart); err != nil {
		return errcode.FileNotFound.With("unable to restore write position: %v", err)
	}
	return nil
}

func putSize32(dst []byte, v uint64) {
	if v > uint64(max32) {
		binary.LittleEndian.PutUint32(dst, max32)
		return
	}
	binary.LittleEndian.PutUint32(dst, uint32(v))
}

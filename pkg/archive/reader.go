package archive

import (
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/cuemby/modio-go/pkg/errcode"
	"github.com/klauspost/compress/flate"
)

// chunkSize bounds every streaming read/write the extractor performs, so a
// single entry's extraction never holds more than one chunk in memory.
const chunkSize = 64 * 1024

// Reader provides random access into an already-downloaded zip archive via
// its central directory.
type Reader struct {
	ra      io.ReaderAt
	size    int64
	entries []Entry
	isZip64 bool
}

// Open parses the central directory of the archive backed by ra, which
// must expose size bytes.
func Open(ra io.ReaderAt, size int64) (*Reader, error) {
	if size < endCentralDirectoryHeaderSize {
		return nil, errcode.ArchiveTruncated.With("archive too small to contain an end-of-central-directory record (%d bytes)", size)
	}

	eocdOffset, isZip64, err := locateEndOfCentralDirectory(ra, size)
	if err != nil {
		return nil, err
	}

	numRecords, cdSize, cdOffset, err := readCentralDirectoryCounts(ra, eocdOffset, isZip64)
	if err != nil {
		return nil, err
	}

	cd := make([]byte, cdSize)
	if _, err := ra.ReadAt(cd, int64(cdOffset)); err != nil {
		return nil, errcode.ArchiveTruncated.With("unable to read central directory: %v", err)
	}

	entries := make([]Entry, 0, numRecords)
	var offset uint64
	for uint64(len(entries)) < numRecords && offset+centralDirectoryFixedFieldsSize <= uint64(len(cd)) {
		if binary.LittleEndian.Uint32(cd[offset:]) != sigCentralDirectoryFileHeader {
			return nil, errcode.ArchiveInvalidHeader.With("central directory record at +%d missing signature", offset)
		}
		entry, next, err := parseCentralDirectoryRecord(cd, offset)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
		offset = next
	}

	for i := range entries {
		trueOffset, err := resolveLocalHeaderPayloadOffset(ra, entries[i].FileOffset)
		if err != nil {
			return nil, err
		}
		entries[i].FileOffset = trueOffset
	}

	return &Reader{ra: ra, size: size, entries: entries, isZip64: isZip64}, nil
}

// Entries returns every file and directory record found in the archive, in
// central-directory order.
func (r *Reader) Entries() []Entry { return r.entries }

// Entry looks up a single record by its stored path.
func (r *Reader) Entry(name string) (Entry, bool) {
	for _, e := range r.entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// IsZip64 reports whether the archive carried Zip64 end-of-central-directory
// records.
func (r *Reader) IsZip64() bool { return r.isZip64 }

// ExtractEntry streams e's decompressed payload to w in chunkSize pieces,
// invoking onProgress (if non-nil) after each chunk with the cumulative
// number of decompressed bytes written. It verifies the CRC-32 of the
// decompressed bytes against the value recorded in the central directory.
func (r *Reader) ExtractEntry(e Entry, w io.Writer, onProgress func(written int64)) error {
	if e.IsDirectory {
		return nil
	}

	src := io.NewSectionReader(r.ra, int64(e.FileOffset), int64(e.CompressedSize))

	var payload io.Reader
	switch e.Compression {
	case Store:
		payload = src
	case Deflate:
		payload = flate.NewReader(src)
	default:
		return errcode.ArchiveUnsupportedZip.With("unsupported compression method %d for %q", e.Compression, e.Name)
	}

	checksum := crc32.New(crcTable())
	tee := io.TeeReader(payload, checksum)

	buf := make([]byte, chunkSize)
	var written int64
	for {
		n, rerr := tee.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return errcode.FileNotFound.With("extract write failed for %q: %v", e.Name, werr)
			}
			written += int64(n)
			if onProgress != nil {
				onProgress(written)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return errcode.ArchiveTruncated.With("extract read failed for %q: %v", e.Name, rerr)
		}
	}

	if closer, ok := payload.(io.Closer); ok {
		_ = closer.Close()
	}

	if checksum.Sum32() != e.CRC32 {
		return errcode.ArchiveCRCMismatch.With("crc mismatch for %q: got %08x want %08x", e.Name, checksum.Sum32(), e.CRC32)
	}
	return nil
}

// locateEndOfCentralDirectory performs the backward scan described by the
// archive format: within a generous tail window, it looks for the Zip64
// end-of-central-directory signature first (authoritative for archives
// whose sizes overflow 32 bits), falling back to the classic signature.
func locateEndOfCentralDirectory(ra io.ReaderAt, size int64) (offset int64, isZip64 bool, err error) {
	const maxCommentSize = 0xffff
	window := int64(endCentralDirectoryHeaderSize) + maxCommentSize + endCentralDirectoryLocatorSize64 + endCentralDirectoryHeaderSize64
	if window > size {
		window = size
	}
	start := size - window
	buf := make([]byte, window)
	if _, err := ra.ReadAt(buf, start); err != nil && err != io.EOF {
		return 0, false, errcode.ArchiveTruncated.With("unable to read end-of-central-directory window: %v", err)
	}

	zip64At := int64(-1)
	classicAt := int64(-1)
	for i := int64(len(buf)) - 4; i >= 0; i-- {
		v := binary.LittleEndian.Uint32(buf[i:])
		if v == sigEndCentralDirectory64 && zip64At < 0 {
			zip64At = i
			break
		}
		if v == sigEndCentralDirectory && classicAt < 0 {
			classicAt = i
		}
	}

	if zip64At >= 0 {
		return start + zip64At, true, nil
	}
	if classicAt >= 0 {
		return start + classicAt, false, nil
	}
	return 0, false, errcode.ArchiveInvalidHeader.With("no end-of-central-directory record found")
}

func readCentralDirectoryCounts(ra io.ReaderAt, eocdOffset int64, isZip64 bool) (numRecords, cdSize, cdOffset uint64, err error) {
	if isZip64 {
		buf := make([]byte, endCentralDirectoryHeaderSize64)
		if _, err := ra.ReadAt(buf, eocdOffset); err != nil {
			return 0, 0, 0, errcode.ArchiveTruncated.With("unable to read zip64 end-of-central-directory record: %v", err)
		}
		numRecords = binary.LittleEndian.Uint64(buf[32:])
		cdSize = binary.LittleEndian.Uint64(buf[40:])
		cdOffset = binary.LittleEndian.Uint64(buf[48:])
		return numRecords, cdSize, cdOffset, nil
	}

	buf := make([]byte, endCentralDirectoryHeaderSize)
	if _, err := ra.ReadAt(buf, eocdOffset); err != nil {
		return 0, 0, 0, errcode.ArchiveTruncated.With("unable to read end-of-central-directory record: %v", err)
	}
	numRecords = uint64(binary.LittleEndian.Uint16(buf[10:]))
	cdSize = uint64(binary.LittleEndian.Uint32(buf[12:]))
	cdOffset = uint64(binary.LittleEndian.Uint32(buf[16:]))
	return numRecords, cdSize, cdOffset, nil
}

// parseCentralDirectoryRecord reads one fixed-layout central directory
// record starting at off within cd, resolving Zip64 extra-field overrides
// when any of compressed size, uncompressed size or local header offset
// carries the 0xFFFFFFFF sentinel. It returns the parsed entry and the
// offset of the next record.
func parseCentralDirectoryRecord(cd []byte, off uint64) (Entry, uint64, error) {
	compression := binary.LittleEndian.Uint16(cd[off+10:])
	crc := binary.LittleEndian.Uint32(cd[off+16:])
	compressedSize := uint64(binary.LittleEndian.Uint32(cd[off+20:]))
	uncompressedSize := uint64(binary.LittleEndian.Uint32(cd[off+24:]))
	nameLen := uint64(binary.LittleEndian.Uint16(cd[off+28:]))
	extraLen := uint64(binary.LittleEndian.Uint16(cd[off+30:]))
	commentLen := uint64(binary.LittleEndian.Uint16(cd[off+32:]))
	externalAttrs := binary.LittleEndian.Uint32(cd[off+38:])
	localHeaderOffset := uint64(binary.LittleEndian.Uint32(cd[off+42:]))

	nameStart := off + centralDirectoryFixedFieldsSize
	if nameStart+nameLen > uint64(len(cd)) {
		return Entry{}, 0, errcode.ArchiveInvalidHeader.With("central directory record name overruns buffer")
	}
	name := string(cd[nameStart : nameStart+nameLen])

	if compressedSize == uint64(max32) || uncompressedSize == uint64(max32) || localHeaderOffset == uint64(max32) {
		extraStart := nameStart + nameLen
		var headerSize uint16
		found := false
		for i := extraStart; i+4 <= uint64(len(cd)); i += 4 {
			if binary.LittleEndian.Uint32(cd[i:]) == sigCentralDirectoryFileHeader {
				// Walked straight into the next record without ever
				// finding a recognizable extra field header.
				return Entry{}, 0, errcode.ArchiveInvalidHeader.With("zip64 extra field missing for %q", name)
			}
			headerID := binary.LittleEndian.Uint16(cd[i:])
			headerSize = binary.LittleEndian.Uint16(cd[i+2:])
			if headerID == extendedInformationFieldHeaderID && validExtraFieldSize(headerSize) {
				extraStart = i + 4
				found = true
				break
			}
		}
		if !found {
			return Entry{}, 0, errcode.ArchiveInvalidHeader.With("zip64 extra field not found for %q", name)
		}

		switch headerSize {
		case 8:
			localHeaderOffset = binary.LittleEndian.Uint64(cd[extraStart:])
		case 16:
			uncompressedSize = binary.LittleEndian.Uint64(cd[extraStart:])
			compressedSize = binary.LittleEndian.Uint64(cd[extraStart+8:])
		default:
			uncompressedSize = binary.LittleEndian.Uint64(cd[extraStart:])
			compressedSize = binary.LittleEndian.Uint64(cd[extraStart+8:])
			localHeaderOffset = binary.LittleEndian.Uint64(cd[extraStart+16:])
		}
	}

	next := off + centralDirectoryFixedFieldsSize + nameLen + extraLen + commentLen
	return Entry{
		Name:             name,
		Compression:      CompressionMethod(compression),
		FileOffset:       localHeaderOffset,
		CompressedSize:   compressedSize,
		UncompressedSize: uncompressedSize,
		CRC32:            crc,
		IsDirectory:      (externalAttrs&directoryExternalAttrBit) == directoryExternalAttrBit || (nameLen > 0 && name[len(name)-1] == '/'),
	}, next, nil
}

// resolveLocalHeaderPayloadOffset reads a 30-byte local file header at
// localOffset and returns the offset of the entry's actual payload, past
// the header plus its filename and extra field.
func resolveLocalHeaderPayloadOffset(ra io.ReaderAt, localOffset uint64) (uint64, error) {
	hdr := make([]byte, localDirectoryHeaderSize)
	if _, err := ra.ReadAt(hdr, int64(localOffset)); err != nil {
		return 0, errcode.ArchiveTruncated.With("unable to read local file header at %d: %v", localOffset, err)
	}
	if binary.LittleEndian.Uint32(hdr) != sigLocalDirectoryHeader {
		return 0, errcode.ArchiveInvalidHeader.With("local file header at %d missing signature", localOffset)
	}
	nameLen := uint64(binary.LittleEndian.Uint16(hdr[26:]))
	extraLen := uint64(binary.LittleEndian.Uint16(hdr[28:]))
	return localOffset + localDirectoryHeaderSize + nameLen + extraLen, nil
}

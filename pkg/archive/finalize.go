package archive

import (
	"encoding/binary"

	"github.com/cuemby/modio-go/pkg/errcode"
)

// Finalize writes the central directory and end-of-central-directory
// records for every entry added so far. It auto-promotes to a Zip64
// end-of-central-directory record and locator whenever the archive's
// record count, central directory size, or offset overflow their
// classic 16- or 32-bit fields — the writer-side mirror of the reader's
// Zip64 sentinel handling.
func (wr *Writer) Finalize() error {
	cdStart := wr.offset
	for _, rec := range wr.records {
		if err := wr.writeCentralDirectoryRecord(rec); err != nil {
			return err
		}
	}
	cdSize := wr.offset - cdStart
	numRecords := uint64(len(wr.records))

	needsZip64 := numRecords > uint64(max16) || cdSize > uint64(max32) || cdStart > uint64(max32)

	if needsZip64 {
		zip64EOCDOffset := wr.offset
		if err := wr.writeZip64EndOfCentralDirectory(numRecords, cdSize, cdStart); err != nil {
			return err
		}
		if err := wr.writeZip64Locator(zip64EOCDOffset); err != nil {
			return err
		}
	}

	return wr.writeEndOfCentralDirectory(numRecords, cdSize, cdStart, needsZip64)
}

func (wr *Writer) writeCentralDirectoryRecord(rec writtenRecord) error {
	nameBytes := []byte(rec.name)
	overflow := rec.compressedSize > uint64(max32) || rec.uncompressedSize > uint64(max32) || rec.localHeaderOffset > uint64(max32)

	extraLen := 0
	if overflow {
		extraLen = 4 + 24 // header + uncompressed(8) + compressed(8) + offset(8)
	}

	buf := make([]byte, centralDirectoryFixedFieldsSize+len(nameBytes)+extraLen)
	binary.LittleEndian.PutUint32(buf[0:], sigCentralDirectoryFileHeader)
	binary.LittleEndian.PutUint16(buf[4:], zip64Version) // version made by
	binary.LittleEndian.PutUint16(buf[6:], zip64Version)
	binary.LittleEndian.PutUint16(buf[8:], 0) // general purpose flags
	binary.LittleEndian.PutUint16(buf[10:], uint16(rec.compression))
	binary.LittleEndian.PutUint16(buf[12:], 0) // mod time
	binary.LittleEndian.PutUint16(buf[14:], 0) // mod date
	binary.LittleEndian.PutUint32(buf[16:], rec.crc32)
	putSize32(buf[20:], rec.compressedSize)
	putSize32(buf[24:], rec.uncompressedSize)
	binary.LittleEndian.PutUint16(buf[28:], uint16(len(nameBytes)))
	binary.LittleEndian.PutUint16(buf[30:], uint16(extraLen))
	binary.LittleEndian.PutUint16(buf[32:], 0) // comment length
	binary.LittleEndian.PutUint16(buf[34:], 0) // disk number start
	binary.LittleEndian.PutUint16(buf[36:], 0) // internal attributes
	var externalAttrs uint32
	if rec.isDirectory {
		externalAttrs |= directoryExternalAttrBit
	}
	binary.LittleEndian.PutUint32(buf[38:], externalAttrs)
	putOffset32(buf[42:], rec.localHeaderOffset)
	copy(buf[46:], nameBytes)

	if overflow {
		off := 46 + len(nameBytes)
		binary.LittleEndian.PutUint16(buf[off:], extendedInformationFieldHeaderID)
		binary.LittleEndian.PutUint16(buf[off+2:], 24)
		binary.LittleEndian.PutUint64(buf[off+4:], rec.uncompressedSize)
		binary.LittleEndian.PutUint64(buf[off+12:], rec.compressedSize)
		binary.LittleEndian.PutUint64(buf[off+20:], rec.localHeaderOffset)
	}

	n, err := wr.w.Write(buf)
	if err != nil {
		return errcode.FileNotFound.With("unable to write central directory record for %q: %v", rec.name, err)
	}
	wr.offset += uint64(n)
	return nil
}

func (wr *Writer) writeZip64EndOfCentralDirectory(numRecords, cdSize, cdOffset uint64) error {
	buf := make([]byte, endCentralDirectoryHeaderSize64)
	binary.LittleEndian.PutUint32(buf[0:], sigEndCentralDirectory64)
	binary.LittleEndian.PutUint64(buf[4:], uint64(endCentralDirectoryHeaderSize64-12))
	binary.LittleEndian.PutUint16(buf[12:], zip64Version) // version made by
	binary.LittleEndian.PutUint16(buf[14:], zip64Version) // version needed
	binary.LittleEndian.PutUint32(buf[16:], 0)            // disk number
	binary.LittleEndian.PutUint32(buf[20:], 0)            // disk with central dir start
	binary.LittleEndian.PutUint64(buf[24:], numRecords)   // records on this disk
	binary.LittleEndian.PutUint64(buf[32:], numRecords)   // records total
	binary.LittleEndian.PutUint64(buf[40:], cdSize)
	binary.LittleEndian.PutUint64(buf[48:], cdOffset)
	n, err := wr.w.Write(buf)
	if err != nil {
		return errcode.FileNotFound.With("unable to write zip64 end-of-central-directory record: %v", err)
	}
	wr.offset += uint64(n)
	return nil
}

func (wr *Writer) writeZip64Locator(zip64EOCDOffset uint64) error {
	buf := make([]byte, endCentralDirectoryLocatorSize64)
	binary.LittleEndian.PutUint32(buf[0:], sigEndCentralDirectoryLocator64)
	binary.LittleEndian.PutUint32(buf[4:], 0) // disk with zip64 eocd start
	binary.LittleEndian.PutUint64(buf[8:], zip64EOCDOffset)
	binary.LittleEndian.PutUint32(buf[16:], 1) // total number of disks
	n, err := wr.w.Write(buf)
	if err != nil {
		return errcode.FileNotFound.With("unable to write zip64 locator: %v", err)
	}
	wr.offset += uint64(n)
	return nil
}

func (wr *Writer) writeEndOfCentralDirectory(numRecords, cdSize, cdOffset uint64, isZip64 bool) error {
	buf := make([]byte, endCentralDirectoryHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:], sigEndCentralDirectory)
	binary.LittleEndian.PutUint16(buf[4:], 0) // disk number
	binary.LittleEndian.PutUint16(buf[6:], 0) // disk with central dir start

	recordsField := uint16(numRecords)
	if isZip64 || numRecords > uint64(max16) {
		recordsField = max16
	}
	binary.LittleEndian.PutUint16(buf[8:], recordsField)
	binary.LittleEndian.PutUint16(buf[10:], recordsField)
	putSize32(buf[12:], cdSize)
	putOffset32(buf[16:], cdOffset)
	binary.LittleEndian.PutUint16(buf[20:], 0) // comment length

	_, err := wr.w.Write(buf)
	if err != nil {
		return errcode.FileNotFound.With("unable to write end-of-central-directory record: %v", err)
	}
	return nil
}

func putOffset32(dst []byte, v uint64) {
	putSize32(dst, v)
}

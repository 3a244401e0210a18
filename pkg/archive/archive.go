// Package archive is the zip/Zip64 archive engine: a random-access reader
// that locates entries via the central directory and streams their payload
// out in fixed-size chunks, and a sequential writer that packages a mod's
// files for upload, auto-promoting to Zip64 wherever a size or offset
// outgrows 32 bits.
package archive

import "hash/crc32"

// Exact tag values and structure sizes mirror the reference archive's
// ZipStructures: https://github.com/modio/modio-sdk (zip/Zip64 format
// constants, not anything specific to this project).
const (
	sigEndCentralDirectory64        uint32 = 0x06064b50
	sigEndCentralDirectoryLocator64 uint32 = 0x07064b50
	sigEndCentralDirectory          uint32 = 0x06054b50
	sigCentralDirectoryFileHeader   uint32 = 0x02014b50
	sigLocalDirectoryHeader         uint32 = 0x04034b50

	localDirectoryHeaderSize         = 30
	endCentralDirectoryHeaderSize    = 22
	endCentralDirectoryHeaderSize64  = 56
	endCentralDirectoryLocatorSize64 = 20
	centralDirectoryFixedFieldsSize  = 46

	extendedInformationFieldHeaderID uint16 = 0x0001
	zip64ExtraFieldSize                     = 16 // uncompressed(8) + compressed(8), no offset/disk

	zip64Version uint16 = 45
	zipVersion   uint16 = 20

	max16 uint16 = 0xffff
	max32 uint32 = 0xffffffff

	directoryExternalAttrBit uint32 = 0x10
)

// CompressionMethod identifies how an entry's payload bytes are stored.
type CompressionMethod uint16

const (
	Store   CompressionMethod = 0
	Deflate CompressionMethod = 8
)

// Entry describes one file or directory record found in an archive's
// central directory, with FileOffset already corrected past its local
// header so it points directly at the payload.
type Entry struct {
	Name             string
	Compression      CompressionMethod
	FileOffset       uint64
	CompressedSize   uint64
	UncompressedSize uint64
	CRC32            uint32
	IsDirectory      bool
}

func validExtraFieldSize(size uint16) bool {
	return size == 8 || size == 16 || size == 24 || size == 28
}

func crcTable() *crc32.Table { return crc32.IEEETable }
